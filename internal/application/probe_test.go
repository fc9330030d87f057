package application

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/six502/emuctl/internal/adapters/emuhttp"
	filestore "github.com/six502/emuctl/internal/adapters/secrets/file"
	"github.com/six502/emuctl/internal/domain"
	"github.com/six502/emuctl/internal/emutest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeClassifiesUnbuiltEndpointsAsExpectedAbsent(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()
	client, err := emuhttp.NewClient(server.URL)
	require.NoError(t, err)

	report := &domain.Report{BaseURL: server.URL}
	require.NoError(t, NewProbe(client, nil).Run(context.Background(), report, ""))

	pass, absent, fail := report.Counts()
	assert.Equal(t, 0, fail)
	assert.Equal(t, 1, pass, "only the metrics exposition is built on this deployment")
	assert.Equal(t, len(report.Entries)-1, absent)

	for _, entry := range report.Entries {
		if entry.Feature == "metrics/exposition" {
			assert.Equal(t, domain.VerdictPass, entry.Verdict)
			assert.Contains(t, entry.Detail, "metric values exposed")
			continue
		}
		assert.Equal(t, domain.VerdictExpectedAbsent, entry.Verdict, entry.Feature)
	}
}

func TestProbeTreatsMissingMetricsAsExpectedAbsent(t *testing.T) {
	server := emutest.NewServer(emutest.WithoutMetrics())
	defer server.Close()
	client, err := emuhttp.NewClient(server.URL)
	require.NoError(t, err)

	report := &domain.Report{BaseURL: server.URL}
	require.NoError(t, NewProbe(client, nil).Run(context.Background(), report, ""))

	_, _, fail := report.Counts()
	assert.Equal(t, 0, fail)
}

func TestProbeAttachesAndStoresLoginToken(t *testing.T) {
	server := emutest.NewServer(emutest.WithAuthToken("tok-abc"))
	defer server.Close()
	client, err := emuhttp.NewClient(server.URL)
	require.NoError(t, err)

	store := filestore.NewStore(filepath.Join(t.TempDir(), "secrets"))
	report := &domain.Report{BaseURL: server.URL}
	require.NoError(t, NewProbe(client, store).Run(context.Background(), report, ""))

	verdicts := map[string]domain.Verdict{}
	for _, entry := range report.Entries {
		verdicts[entry.Feature] = entry.Verdict
	}

	assert.Equal(t, domain.VerdictPass, verdicts["auth/login"])
	// The token attached by login makes the authenticated endpoint pass.
	assert.Equal(t, domain.VerdictPass, verdicts["auth/me"])
	assert.Equal(t, domain.VerdictExpectedAbsent, verdicts["auth/register"])

	stored, err := store.Get(context.Background(), BearerTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", stored)
}

func TestProbeAbortsOnCanceledContext(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()
	client, err := emuhttp.NewClient(server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := &domain.Report{BaseURL: server.URL}
	err = NewProbe(client, nil).Run(ctx, report, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRunAborted)
}
