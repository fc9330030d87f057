package emutest

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createInstance(t *testing.T, server *Server) string {
	t.Helper()

	resp, err := http.Post(server.URL+"/emulator", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var created struct {
		Success bool          `json:"success"`
		Data    emulatorState `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.True(t, created.Success)
	require.NotEmpty(t, created.Data.ID)
	return created.Data.ID
}

func TestServerConcurrentRequestsOnOneInstance(t *testing.T) {
	server := NewServer()
	defer server.Close()

	id := createInstance(t, server)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				resp, err := http.Post(server.URL+"/emulator/"+id+"/step", "application/json", nil)
				if assert.NoError(t, err) {
					resp.Body.Close()
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				resp, err := http.Get(server.URL + "/emulator/" + id)
				if assert.NoError(t, err) {
					resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()

	resp, err := http.Get(server.URL + "/emulator/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()

	var final struct {
		Success bool          `json:"success"`
		Data    emulatorState `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&final))
	require.True(t, final.Success)
	// Empty memory is all BRK, so the first step halts the core.
	assert.True(t, final.Data.CPU.Halted)
	assert.Equal(t, 1, server.SessionCount())
}
