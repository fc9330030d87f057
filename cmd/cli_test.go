package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/six502/emuctl/internal/emutest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommandPassesAgainstHealthyService(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, stderr, err := executeCLI(t, home, "run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Emulator Service Verification")
	assert.Contains(t, stdout, "PASS")
	assert.Contains(t, stdout, "fail=0")
	assert.Contains(t, stdout, "absent")
	assert.Contains(t, stderr, "Running verification suite")
	assert.Equal(t, 0, server.SessionCount(), "run must clean up every instance it created")
}

func TestRunCommandFailsWhenArithmeticIsBroken(t *testing.T) {
	server := emutest.NewServer(emutest.WithADCBroken())
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "run", "--skip-enterprise")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checks failed")
	assert.Contains(t, stdout, "FAIL")
}

func TestRunCommandJSONOutput(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "run", "--skip-enterprise", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "\"Entries\"")
	assert.Contains(t, stdout, "verify/arithmetic-steps")
}

func TestRunCommandAppendsJournal(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	_, _, err := executeCLI(t, home, "run", "--skip-enterprise")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, home, "runs")
	require.NoError(t, err)
	assert.Contains(t, stdout, server.URL)
	assert.Contains(t, stdout, "fail=0")
}

func TestRunsCommandWithEmptyJournal(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "runs")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no recorded runs")
}

func TestProbeReportsEnterpriseEndpointsAbsent(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "probe")
	require.NoError(t, err)
	assert.Contains(t, stdout, "probe")
	assert.Contains(t, stdout, "absent")
	assert.Contains(t, stdout, "fail=0")
}

func TestProbeStoresTokenWhenAuthIsBuilt(t *testing.T) {
	server := emutest.NewServer(emutest.WithAuthToken("tok-123"))
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	_, _, err := executeCLI(t, home, "probe")
	require.NoError(t, err)

	stored, err := os.ReadFile(filepath.Join(home, ".emuctl", "secrets", "emuctl", "bearer_token"))
	require.NoError(t, err)
	assert.Equal(t, "tok-123", string(stored))
}

func TestVerifyCommandPasses(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "verify")
	require.NoError(t, err)
	assert.Contains(t, stdout, "verify")
	assert.Contains(t, stdout, "PASS")
}

func TestStressCommandRunsParallelSessions(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "stress", "--sessions", "4", "--steps", "30", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, stdout, "session-1")
	assert.Contains(t, stdout, "session-4")
	assert.Contains(t, stdout, "halted=true")
	assert.Equal(t, 0, server.SessionCount())
}

func TestSessionCreateStateDelete(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "session", "create")
	require.NoError(t, err)
	id := strings.TrimSpace(stdout)
	require.NotEmpty(t, id)

	stdout, _, err = executeCLI(t, home, "session", "state", id)
	require.NoError(t, err)
	assert.Contains(t, stdout, "A=$00")
	assert.Contains(t, stdout, "halted=false")

	stdout, _, err = executeCLI(t, home, "session", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, stdout, "deleted "+id)
	assert.Equal(t, 0, server.SessionCount())
}

func TestSessionDeleteUnknownIDFails(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	_, _, err := executeCLI(t, home, "session", "delete", "no-such-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Emulator not found")
}

func TestSessionLoadExecPeek(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "session", "create")
	require.NoError(t, err)
	id := strings.TrimSpace(stdout)

	stdout, _, err = executeCLI(t, home, "session", "load", id, "--program", "simple-add", "--reset")
	require.NoError(t, err)
	assert.Contains(t, stdout, "loaded simple-add")
	assert.Contains(t, stdout, "$8000")

	stdout, _, err = executeCLI(t, home, "session", "exec", id, "--steps", "10")
	require.NoError(t, err)
	assert.Contains(t, stdout, "halted=true")

	stdout, _, err = executeCLI(t, home, "session", "peek", id, "--address", "0x6000", "--length", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "6000: 08")
}

func TestSessionLoadUnknownProgram(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "session", "create")
	require.NoError(t, err)
	id := strings.TrimSpace(stdout)

	_, _, err = executeCLI(t, home, "session", "load", id, "--program", "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown program")
	assert.Contains(t, err.Error(), "arithmetic")
}

func TestSessionPokePeekRoundtrip(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "session", "create")
	require.NoError(t, err)
	id := strings.TrimSpace(stdout)

	stdout, _, err = executeCLI(t, home, "session", "poke", id, "--address", "0x0200", "--bytes", "DE AD BE EF")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 4 byte(s) at $0200")

	stdout, _, err = executeCLI(t, home, "session", "peek", id, "--address", "0x0200", "--length", "4")
	require.NoError(t, err)
	assert.Contains(t, stdout, "0200: DE AD BE EF")
}

func TestSessionPeekRejectsOutOfRangeRegion(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "session", "create")
	require.NoError(t, err)
	id := strings.TrimSpace(stdout)

	_, _, err = executeCLI(t, home, "session", "peek", id, "--address", "0xFFFF", "--length", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "64KiB address space")
}

func TestMetricsCommand(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "metrics")
	require.NoError(t, err)
	assert.Contains(t, stdout, "emulator_instances_active")
}

func TestMetricsCommandFailsWhenAbsent(t *testing.T) {
	server := emutest.NewServer(emutest.WithoutMetrics())
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	_, _, err := executeCLI(t, home, "metrics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics endpoint not built")
}

func TestConfigFileSetsServerBaseURL(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", "")
	writeConfig(t, home, "[server]\nbase_url = \""+server.URL+"\"\n")

	stdout, _, err := executeCLI(t, home, "metrics")
	require.NoError(t, err)
	assert.Contains(t, stdout, "emulator_instances_active")
}

func TestEnvironmentOverridesConfigFile(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	writeConfig(t, home, "[server]\nbase_url = \"http://127.0.0.1:1\"\n")
	t.Setenv("EMUCTL_BASE_URL", server.URL)

	stdout, _, err := executeCLI(t, home, "metrics")
	require.NoError(t, err)
	assert.Contains(t, stdout, "emulator_instances_active")
}

func TestConfigFileRejectsBadTimeout(t *testing.T) {
	home := t.TempDir()
	t.Setenv("EMUCTL_TIMEOUT", "")
	writeConfig(t, home, "[server]\ntimeout = \"soon\"\n")

	_, _, err := executeCLI(t, home, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse request timeout")
}

func TestServerFlagOverridesEnvironment(t *testing.T) {
	server := emutest.NewServer()
	defer server.Close()

	home := t.TempDir()
	t.Setenv("EMUCTL_BASE_URL", "http://127.0.0.1:1")

	stdout, _, err := executeCLI(t, home, "--server", server.URL, "metrics")
	require.NoError(t, err)
	assert.Contains(t, stdout, "emulator_instances_active")
}

func writeConfig(t *testing.T, home, contents string) {
	t.Helper()

	dir := filepath.Join(home, ".emuctl")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(contents), 0o600))
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
