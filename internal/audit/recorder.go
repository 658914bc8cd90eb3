package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trustcore/internal/constants"
	"trustcore/pkg/errors"
)

// Recorder stamps and persists audit entries.
type Recorder struct {
	repo Repository
	now  func() time.Time
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{
		repo: repo,
		now:  time.Now,
	}
}

func (r *Recorder) Append(ctx context.Context, req AppendRequest) (*Entry, error) {
	if req.EntityType == "" || req.EntityID == "" || req.Action == "" {
		return nil, errors.Validationf("entityType, entityId and action are required")
	}

	actor := req.Actor
	if actor == "" {
		actor = constants.DefaultAuditActor
	}

	entry := &Entry{
		ID:         uuid.New().String(),
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Action:     req.Action,
		Actor:      actor,
		Meta:       req.Meta,
		// stored precision must match what the leaf hash commits to
		CreatedAt: r.now().UTC().Truncate(time.Millisecond),
	}

	if err := r.repo.Append(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *Recorder) Record(ctx context.Context, entityType, entityID, action, actor string, meta map[string]interface{}) (*Entry, error) {
	return r.Append(ctx, AppendRequest{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		Meta:       meta,
	})
}

func (r *Recorder) Get(ctx context.Context, id string) (*Entry, error) {
	return r.repo.Get(ctx, id)
}

func (r *Recorder) ListWindow(ctx context.Context, start, end time.Time) ([]Entry, error) {
	if !start.Before(end) {
		return nil, errors.Validationf("start must be before end")
	}
	return r.repo.ListWindow(ctx, start, end)
}
