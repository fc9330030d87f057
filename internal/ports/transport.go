package ports

import (
	"context"

	"github.com/six502/emuctl/internal/domain"
)

type CredentialScheme string

const (
	CredentialBearer CredentialScheme = "Bearer"
	CredentialAPIKey CredentialScheme = "ApiKey"
)

type Credential struct {
	Scheme CredentialScheme
	Token  string
}

func (c Credential) Empty() bool {
	return c.Token == ""
}

// Transport issues one request against the service and folds every
// transport- and protocol-level failure into a domain.Outcome. It never
// retries; retry policy, if any, belongs to the caller.
type Transport interface {
	// Send issues method+path with an optional JSON body and parses the
	// {success, data, error} envelope.
	Send(ctx context.Context, method, path string, body any) domain.Outcome
	// Text fetches a non-enveloped plaintext resource such as /metrics.
	Text(ctx context.Context, path string) (string, domain.Outcome)
	// SetCredential attaches a credential to every subsequent request.
	SetCredential(credential Credential)
}
