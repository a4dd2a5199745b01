package ports

import (
	"context"

	"github.com/bnema/mcrt/internal/domain"
)

type RunRepository interface {
	GetByID(ctx context.Context, id domain.RunID) (domain.Run, error)
	List(ctx context.Context) ([]domain.Run, error)
	Save(ctx context.Context, run domain.Run) error
}
