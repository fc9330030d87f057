package application

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/six502/emuctl/internal/domain"
	"github.com/six502/emuctl/internal/ports"
)

// BearerTokenKey is where a login token obtained from a deployment that
// implements auth is persisted between runs.
const BearerTokenKey = "emuctl/bearer_token"

// APIKeyKey is where a created API key is persisted between runs.
const APIKeyKey = "emuctl/api_key"

// Probe exercises the enterprise feature surface. Every endpoint here
// may legitimately answer 404; that classifies as expected-absent and
// never aborts the run.
type Probe struct {
	transport   ports.Transport
	credentials ports.CredentialStore
}

func NewProbe(transport ports.Transport, credentials ports.CredentialStore) *Probe {
	return &Probe{transport: transport, credentials: credentials}
}

// Run sweeps auth, API keys, instances, snapshots, and metrics.
// sessionID scopes the snapshot exercises to a live emulator when one
// is available; lifecycle calls against made-up ids still prove whether
// the routes exist.
func (p *Probe) Run(ctx context.Context, report *domain.Report, sessionID domain.SessionID) error {
	phases := []func(context.Context, *domain.Report) error{
		p.probeAuth,
		p.probeAPIKeys,
		p.probeInstances,
		func(ctx context.Context, report *domain.Report) error {
			return p.probeSnapshots(ctx, report, sessionID)
		},
		p.probeMetrics,
	}

	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrRunAborted, err)
		}
		if err := phase(ctx, report); err != nil {
			return err
		}
	}

	return nil
}

func (p *Probe) probeAuth(ctx context.Context, report *domain.Report) error {
	register := map[string]any{
		"username": "testuser",
		"email":    "test@example.com",
		"password": "testpass123",
	}
	report.Record("auth/register", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodPost, "/auth/register", register), "")

	login := map[string]any{"username": "admin", "password": "admin123"}
	outcome := p.transport.Send(ctx, http.MethodPost, "/auth/login", login)
	detail := ""
	if outcome.Kind == domain.OutcomeSuccess {
		var payload struct {
			Token string `json:"token"`
		}
		if err := outcome.Decode(&payload); err == nil && payload.Token != "" {
			p.transport.SetCredential(ports.Credential{Scheme: ports.CredentialBearer, Token: payload.Token})
			detail = "token obtained, attached to subsequent requests"
			if p.credentials != nil {
				// Best effort; a read-only secrets dir must not fail the probe.
				_ = p.credentials.Put(ctx, BearerTokenKey, payload.Token)
			}
		}
	}
	report.Record("auth/login", domain.FeatureEnterprise, outcome, detail)

	report.Record("auth/me", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodGet, "/auth/me", nil), "")

	return nil
}

func (p *Probe) probeAPIKeys(ctx context.Context, report *domain.Report) error {
	create := map[string]any{
		"name":            "emuctl probe key",
		"permissions":     []string{"CreateEmulator", "ReadEmulator", "WriteEmulator", "ManageSnapshots"},
		"expires_in_days": 30,
	}
	outcome := p.transport.Send(ctx, http.MethodPost, "/api-keys", create)
	detail := ""
	if outcome.Kind == domain.OutcomeSuccess {
		var payload struct {
			Key string `json:"key"`
		}
		if err := outcome.Decode(&payload); err == nil && payload.Key != "" {
			p.transport.SetCredential(ports.Credential{Scheme: ports.CredentialAPIKey, Token: payload.Key})
			detail = "api key created, attached to subsequent requests"
			if p.credentials != nil {
				_ = p.credentials.Put(ctx, APIKeyKey, payload.Key)
			}
		}
	}
	report.Record("api-keys/create", domain.FeatureEnterprise, outcome, detail)

	report.Record("api-keys/list", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodGet, "/api-keys", nil), "")

	return nil
}

func (p *Probe) probeInstances(ctx context.Context, report *domain.Report) error {
	create := map[string]any{
		"template_id":   "basic-6502",
		"emulator_type": "Performance",
		"name":          "emuctl probe instance",
		"tags":          []string{"probe"},
		"auto_start":    true,
	}
	report.Record("instances/create", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodPost, "/instances", create), "")

	report.Record("instances/list", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodGet, "/instances", nil), "")

	// Lifecycle calls go against a made-up id; whether the route exists
	// is the question, not whether the instance does.
	instanceID := uuid.NewString()
	report.Record("instances/get", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodGet, "/instances/"+instanceID, nil), "")
	report.Record("instances/start", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodPost, "/instances/"+instanceID+"/start", nil), "")
	report.Record("instances/stop", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodPost, "/instances/"+instanceID+"/stop", nil), "")
	report.Record("instances/pause", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodPost, "/instances/"+instanceID+"/pause", nil), "")

	return nil
}

func (p *Probe) probeSnapshots(ctx context.Context, report *domain.Report, sessionID domain.SessionID) error {
	scope := string(sessionID)
	if scope == "" {
		scope = uuid.NewString()
	}
	base := "/emulator/" + url.PathEscape(scope) + "/snapshots"

	create := map[string]any{
		"name":        "probe checkpoint",
		"description": "checkpoint taken by emuctl",
		"tags":        []string{"probe"},
		"compress":    true,
	}
	report.Record("snapshots/create", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodPost, base, create), "")
	report.Record("snapshots/list", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodGet, base, nil), "")

	snapshotID := uuid.NewString()
	report.Record("snapshots/get", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodGet, "/snapshots/"+snapshotID, nil), "")
	report.Record("snapshots/restore", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodPost, "/snapshots/"+snapshotID+"/restore",
			map[string]any{"snapshot_id": snapshotID, "force": false}), "")
	report.Record("snapshots/delete", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodDelete, "/snapshots/"+snapshotID, nil), "")

	return nil
}

func (p *Probe) probeMetrics(ctx context.Context, report *domain.Report) error {
	text, outcome := p.transport.Text(ctx, "/metrics")
	detail := ""
	if outcome.Kind == domain.OutcomeSuccess {
		detail = fmt.Sprintf("%d metric values exposed", countMetricLines(text))
	}
	report.Record("metrics/exposition", domain.FeatureEnterprise, outcome, detail)

	report.Record("metrics/instance-stats", domain.FeatureEnterprise,
		p.transport.Send(ctx, http.MethodGet, "/instances/"+uuid.NewString()+"/stats", nil), "")

	return nil
}

func countMetricLines(exposition string) int {
	count := 0
	for _, line := range strings.Split(exposition, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		count++
	}
	return count
}
