package emuhttp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/six502/emuctl/internal/domain"
	"github.com/six502/emuctl/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidatesBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "http url", baseURL: "http://localhost:3030"},
		{name: "https url", baseURL: "https://emu.example.com"},
		{name: "empty falls back to default", baseURL: ""},
		{name: "missing scheme", baseURL: "localhost:3030", wantErr: true},
		{name: "unsupported scheme", baseURL: "ftp://localhost", wantErr: true},
		{name: "missing host", baseURL: "http://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.baseURL)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, client)
		})
	}
}

func TestSendFoldsNotFoundIntoNotImplemented(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	outcome := client.Send(context.Background(), http.MethodGet, "/snapshots", nil)
	assert.Equal(t, domain.OutcomeNotImplemented, outcome.Kind)
	assert.Nil(t, outcome.Err)
}

func TestSendParsesSuccessEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		fmt.Fprint(w, `{"success":true,"data":{"id":"em-1"}}`)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	outcome := client.Send(context.Background(), http.MethodPost, "/emulator", map[string]any{})
	require.Equal(t, domain.OutcomeSuccess, outcome.Kind)

	var payload struct {
		ID string `json:"id"`
	}
	require.NoError(t, outcome.Decode(&payload))
	assert.Equal(t, "em-1", payload.ID)
}

func TestSendMapsEnvelopeFailureToApplicationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"success":false,"error":"Emulator not found"}`)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	outcome := client.Send(context.Background(), http.MethodGet, "/emulator/nope", nil)
	require.Equal(t, domain.OutcomeError, outcome.Kind)
	require.NotNil(t, outcome.Err)
	assert.Equal(t, domain.FailureApplication, outcome.Err.Kind)
	assert.Contains(t, outcome.Err.Message, "Emulator not found")
}

func TestSendMapsMalformedBodyToProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html>definitely not json</html>`)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	outcome := client.Send(context.Background(), http.MethodGet, "/emulator/em-1", nil)
	require.Equal(t, domain.OutcomeError, outcome.Kind)
	assert.Equal(t, domain.FailureProtocol, outcome.Err.Kind)
}

func TestSendMapsNon200ToApplicationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "boom")
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	outcome := client.Send(context.Background(), http.MethodPost, "/emulator", nil)
	require.Equal(t, domain.OutcomeError, outcome.Kind)
	assert.Equal(t, domain.FailureApplication, outcome.Err.Kind)
	assert.Contains(t, outcome.Err.Message, "status 500")
}

func TestSendMapsConnectionFailureToTransportError(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1")
	require.NoError(t, err)

	outcome := client.Send(context.Background(), http.MethodGet, "/emulators", nil)
	require.Equal(t, domain.OutcomeError, outcome.Kind)
	assert.Equal(t, domain.FailureTransport, outcome.Err.Kind)
}

func TestSendTimesOutSlowServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, `{"success":true,"data":null}`)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithRequestTimeout(50*time.Millisecond))
	require.NoError(t, err)

	outcome := client.Send(context.Background(), http.MethodGet, "/emulators", nil)
	require.Equal(t, domain.OutcomeError, outcome.Kind)
	assert.Equal(t, domain.FailureTransport, outcome.Err.Kind)
}

func TestSendHonorsCallerDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		fmt.Fprint(w, `{"success":true,"data":null}`)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithRequestTimeout(time.Minute))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome := client.Send(ctx, http.MethodGet, "/emulators", nil)
	require.Equal(t, domain.OutcomeError, outcome.Kind)
	assert.Equal(t, domain.FailureTransport, outcome.Err.Kind)
}

func TestSendAttachesCredential(t *testing.T) {
	var seen string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"success":true,"data":null}`)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	client.Send(context.Background(), http.MethodGet, "/emulators", nil)
	assert.Empty(t, seen, "no credential means no Authorization header")

	client.SetCredential(ports.Credential{Scheme: ports.CredentialBearer, Token: "tok-1"})
	client.Send(context.Background(), http.MethodGet, "/emulators", nil)
	assert.Equal(t, "Bearer tok-1", seen)

	client.SetCredential(ports.Credential{Scheme: ports.CredentialAPIKey, Token: "key-1"})
	client.Send(context.Background(), http.MethodGet, "/emulators", nil)
	assert.Equal(t, "ApiKey key-1", seen)
}

func TestTextFetchesPlainBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metrics", r.URL.Path)
		fmt.Fprint(w, "emulator_instances_active 2\n")
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	body, outcome := client.Text(context.Background(), "/metrics")
	require.Equal(t, domain.OutcomeSuccess, outcome.Kind)
	assert.Contains(t, body, "emulator_instances_active 2")
}

func TestTextFoldsNotFoundIntoNotImplemented(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, outcome := client.Text(context.Background(), "/metrics")
	assert.Equal(t, domain.OutcomeNotImplemented, outcome.Kind)
}
