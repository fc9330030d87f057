package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int         `toml:"version"`
	Runs    []runSchema `toml:"runs"`
}

type runSchema struct {
	ID             string `toml:"id"`
	BaseURL        string `toml:"base_url"`
	StartedAt      string `toml:"started_at"`
	DurationMillis int64  `toml:"duration_ms"`
	Pass           int    `toml:"pass"`
	ExpectedAbsent int    `toml:"expected_absent"`
	Fail           int    `toml:"fail"`
}

func (f *fileSchema) applyDefaults() {
	if f.Version == 0 {
		f.Version = currentSchemaVersion
	}
}

func (f *fileSchema) validateVersion() error {
	if f.Version != 0 && f.Version != currentSchemaVersion {
		return fmt.Errorf("unsupported run journal version %d", f.Version)
	}
	return nil
}
