// Package toml persists the run history as a TOML journal with atomic
// replace-on-write, so concurrent emuctl invocations never tear the
// file.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/six502/emuctl/internal/domain"
	"github.com/six502/emuctl/internal/ports"
	"github.com/spf13/viper"
)

const (
	configName      = "config"
	configType      = "toml"
	historyPathKey  = "history.path"
	journalFileMode = 0o600
	journalDirMode  = 0o700
	configDirName   = ".emuctl"
	journalFileName = "runs.toml"
	tempFilePattern = ".runs-*.toml.tmp"
)

type Journal struct {
	journalPath string
	mu          *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.RunJournal = (*Journal)(nil)

// NewJournal resolves the journal path from the emuctl config file
// (history.path), defaulting to ~/.emuctl/runs.toml.
func NewJournal(cfg *viper.Viper) (*Journal, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, configDirName, journalFileName)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, configDirName))
	cfg.SetDefault(historyPathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	journalPath := cfg.GetString(historyPathKey)
	if journalPath == "" {
		return nil, errors.New("history path is empty")
	}
	journalPath, err = normalizePath(journalPath)
	if err != nil {
		return nil, err
	}

	return &Journal{journalPath: journalPath, mu: lockForPath(journalPath)}, nil
}

func (j *Journal) Append(ctx context.Context, record domain.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := j.readSchema()
	if err != nil {
		return err
	}
	file.applyDefaults()

	file.Runs = append(file.Runs, toSchema(record))

	if err := ctx.Err(); err != nil {
		return err
	}

	return j.writeSchema(file)
}

func (j *Journal) List(ctx context.Context) ([]domain.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	file, err := j.readSchema()
	if err != nil {
		return nil, err
	}
	file.applyDefaults()

	records := make([]domain.RunRecord, 0, len(file.Runs))
	for _, entry := range file.Runs {
		records = append(records, fromSchema(entry))
	}

	return records, nil
}

func (j *Journal) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(j.journalPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read run journal: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode run journal: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func (j *Journal) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(j.journalPath), journalDirMode); err != nil {
		return fmt.Errorf("create run journal directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode run journal: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(j.journalPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp run journal: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp run journal: %w", err)
	}

	if err := tempFile.Chmod(journalFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp run journal: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp run journal: %w", err)
	}

	if err := os.Rename(tempName, j.journalPath); err != nil {
		return fmt.Errorf("replace run journal: %w", err)
	}

	cleanup = false

	if err := os.Chmod(j.journalPath, journalFileMode); err != nil {
		return fmt.Errorf("chmod run journal: %w", err)
	}

	return nil
}

func normalizePath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve run journal path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func toSchema(record domain.RunRecord) runSchema {
	return runSchema{
		ID:             record.ID,
		BaseURL:        record.BaseURL,
		StartedAt:      formatTime(record.StartedAt),
		DurationMillis: record.Duration.Milliseconds(),
		Pass:           record.Pass,
		ExpectedAbsent: record.ExpectedAbsent,
		Fail:           record.Fail,
	}
}

func fromSchema(entry runSchema) domain.RunRecord {
	return domain.RunRecord{
		ID:             entry.ID,
		BaseURL:        entry.BaseURL,
		StartedAt:      parseTime(entry.StartedAt),
		Duration:       time.Duration(entry.DurationMillis) * time.Millisecond,
		Pass:           entry.Pass,
		ExpectedAbsent: entry.ExpectedAbsent,
		Fail:           entry.Fail,
	}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339)
}
