package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/six502/emuctl/internal/adapters/emuhttp"
	reportadapter "github.com/six502/emuctl/internal/adapters/render/report"
	tomlrepo "github.com/six502/emuctl/internal/adapters/repo/toml"
	filestore "github.com/six502/emuctl/internal/adapters/secrets/file"
	"github.com/six502/emuctl/internal/application"
	"github.com/six502/emuctl/internal/domain"
	"github.com/six502/emuctl/internal/ports"
	"github.com/spf13/viper"
)

type app struct {
	transport      ports.Transport
	registry       *application.Registry
	journal        ports.RunJournal
	credentials    ports.CredentialStore
	reportRenderer func(*domain.Report, reportadapter.RenderOptions) (string, error)
	clock          ports.Clock
	baseURL        string
	requestTimeout time.Duration
}

const (
	baseURLKey = "server.base_url"
	timeoutKey = "server.timeout"
)

// loadConfig reads ~/.emuctl/config.toml. A missing file is the normal
// case and falls through to the defaults.
func loadConfig() (*viper.Viper, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg := viper.New()
	cfg.SetConfigName("config")
	cfg.SetConfigType("toml")
	cfg.AddConfigPath(filepath.Join(homeDir, ".emuctl"))
	cfg.SetDefault(baseURLKey, emuhttp.DefaultBaseURL)
	cfg.SetDefault(timeoutKey, "5s")

	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return cfg, nil
}

// wireApp resolves settings from the config file, with EMUCTL_* env
// vars taking precedence; the --server flag overrides both through
// setServer.
func wireApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	baseURL := envOrDefault("EMUCTL_BASE_URL", cfg.GetString(baseURLKey))

	timeoutRaw := envOrDefault("EMUCTL_TIMEOUT", cfg.GetString(timeoutKey))
	requestTimeout, err := time.ParseDuration(timeoutRaw)
	if err != nil {
		return nil, fmt.Errorf("parse request timeout %q: %w", timeoutRaw, err)
	}

	client, err := emuhttp.NewClient(baseURL, emuhttp.WithRequestTimeout(requestTimeout))
	if err != nil {
		return nil, fmt.Errorf("wire service client: %w", err)
	}

	journal, err := tomlrepo.NewJournal(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire run journal: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	credentials := filestore.NewStore(filepath.Join(homeDir, ".emuctl", "secrets"))

	a := &app{
		transport:      client,
		registry:       application.NewRegistry(),
		journal:        journal,
		credentials:    credentials,
		reportRenderer: reportadapter.Render,
		clock:          ports.SystemClock{},
		baseURL:        baseURL,
		requestTimeout: requestTimeout,
	}
	a.attachStoredCredential()

	return a, nil
}

// setServer swaps the transport for one pointed at rawURL; invoked when
// the --server flag overrides the config file and environment.
func (a *app) setServer(rawURL string) error {
	client, err := emuhttp.NewClient(rawURL, emuhttp.WithRequestTimeout(a.requestTimeout))
	if err != nil {
		return fmt.Errorf("wire service client: %w", err)
	}

	a.transport = client
	a.baseURL = rawURL
	a.attachStoredCredential()
	return nil
}

// attachStoredCredential re-attaches a token persisted by an earlier
// probe run. Missing credentials are the normal case.
func (a *app) attachStoredCredential() {
	ctx := context.Background()

	if token, err := a.credentials.Get(ctx, application.BearerTokenKey); err == nil && token != "" {
		a.transport.SetCredential(ports.Credential{Scheme: ports.CredentialBearer, Token: token})
		return
	}
	if key, err := a.credentials.Get(ctx, application.APIKeyKey); err == nil && key != "" {
		a.transport.SetCredential(ports.Credential{Scheme: ports.CredentialAPIKey, Token: key})
	}
}

func (a *app) newRunner() *application.Runner {
	return application.NewRunner(a.transport, a.registry, a.journal, a.credentials, a.clock, a.baseURL)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
