package campaign

import (
	"context"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Member is one targeted user resolved from a campaign's targeting.
type Member struct {
	UserID    string
	Email     string
	Name      string
	MergeData map[string]string
}

// Audience resolves a campaign's targeting into concrete members. User
// storage and segmentation live outside this service; implementations are
// injected.
type Audience interface {
	Resolve(ctx context.Context, mode domain.TargetMode, filters map[string]string) ([]Member, error)
}

// Planner hands a prepared recipient set to the dispatch queue as batches.
// Implemented by the dispatch planner.
type Planner interface {
	Plan(ctx context.Context, campaignID string, recipientIDs []string) (int, error)
}
