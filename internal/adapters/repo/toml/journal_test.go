package toml

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/six502/emuctl/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJournalAt(t *testing.T, path string) *Journal {
	t.Helper()

	cfg := viper.New()
	cfg.Set("history.path", path)

	journal, err := NewJournal(cfg)
	require.NoError(t, err)
	return journal
}

func sampleRecord(id string) domain.RunRecord {
	return domain.RunRecord{
		ID:             id,
		BaseURL:        "http://localhost:3030",
		StartedAt:      time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
		Duration:       1250 * time.Millisecond,
		Pass:           8,
		ExpectedAbsent: 17,
		Fail:           0,
	}
}

func TestJournalAppendAndList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.toml")
	journal := newJournalAt(t, path)

	require.NoError(t, journal.Append(context.Background(), sampleRecord("run-1")))
	require.NoError(t, journal.Append(context.Background(), sampleRecord("run-2")))

	records, err := journal.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run-1", records[0].ID)
	assert.Equal(t, "run-2", records[1].ID)
	assert.Equal(t, "http://localhost:3030", records[0].BaseURL)
	assert.Equal(t, 1250*time.Millisecond, records[0].Duration)
	assert.Equal(t, 8, records[0].Pass)
	assert.Equal(t, 17, records[0].ExpectedAbsent)
	assert.True(t, records[0].StartedAt.Equal(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)))
}

func TestJournalListWithoutFile(t *testing.T) {
	journal := newJournalAt(t, filepath.Join(t.TempDir(), "runs.toml"))

	records, err := journal.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJournalCreatesDirectoryAndRestrictsModes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "history")
	path := filepath.Join(dir, "runs.toml")
	journal := newJournalAt(t, path)

	require.NoError(t, journal.Append(context.Background(), sampleRecord("run-1")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	dirInfo, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
}

func TestJournalWritesVersionedSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.toml")
	journal := newJournalAt(t, path)

	require.NoError(t, journal.Append(context.Background(), sampleRecord("run-1")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "version = 1")
	assert.Contains(t, string(raw), "[[runs]]")
	assert.Contains(t, string(raw), "duration_ms = 1250")
}

func TestJournalRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = 99\n"), 0o600))

	journal := newJournalAt(t, path)
	_, err := journal.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported run journal version")
}

func TestJournalRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0o600))

	journal := newJournalAt(t, path)
	err := journal.Append(context.Background(), sampleRecord("run-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode run journal")
}

func TestJournalHonorsCanceledContext(t *testing.T) {
	journal := newJournalAt(t, filepath.Join(t.TempDir(), "runs.toml"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, journal.Append(ctx, sampleRecord("run-1")))
	_, err := journal.List(ctx)
	require.Error(t, err)
}

func TestJournalConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.toml")

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			journal := newJournalAt(t, path)
			done <- journal.Append(context.Background(), sampleRecord(string(rune('a'+i))))
		}(i)
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}

	journal := newJournalAt(t, path)
	records, err := journal.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 8)
}
