package store

import (
	"context"

	"alphadesk/internal/store/model"
)

// DecisionLog records gate verdicts for audit.
type DecisionLog interface {
	Insert(ctx context.Context, decision *model.DecisionModel) error
	ListRecent(ctx context.Context, limit int) ([]model.DecisionModel, error)
}
