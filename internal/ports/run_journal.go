package ports

import (
	"context"

	"github.com/six502/emuctl/internal/domain"
)

type RunJournal interface {
	Append(ctx context.Context, record domain.RunRecord) error
	List(ctx context.Context) ([]domain.RunRecord, error)
}
