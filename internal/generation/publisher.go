package generation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"roomviz/internal/domain"
	"roomviz/internal/infra"
	"roomviz/internal/sqlinline"
	"roomviz/internal/storage"
)

// Publisher moves a finished run's final frame into permanent storage and
// flips the cache row from pending to complete in one upsert. Publication is
// the run's single commit point: until it succeeds, pollers see pending.
type Publisher struct {
	db     infra.SQLExecutor
	store  storage.ObjectStore
	logger infra.Logger
}

func NewPublisher(db infra.SQLExecutor, store storage.ObjectStore, logger infra.Logger) *Publisher {
	return &Publisher{db: db, store: store, logger: logger}
}

// Publish stores the final image under its permanent key and upserts the
// cache row. Temporary stage outputs are cleaned up best-effort afterwards;
// debug artifacts are kept.
func (p *Publisher) Publish(ctx context.Context, plan *domain.RunPlan, runID uuid.UUID, data []byte, prompt string, passes int) error {
	imageKey := fmt.Sprintf("generated/%s/%s.png", plan.OrgID, plan.SelectionsHash)
	if _, err := p.store.Write(ctx, imageKey, data); err != nil {
		return fmt.Errorf("store final image: %w", err)
	}

	_, err := p.db.Exec(ctx, sqlinline.QPublishEntry,
		plan.SelectionsHash,
		plan.SelectionsJSON,
		imageKey,
		prompt,
		plan.OrgID,
		plan.PhotoID,
		plan.StepID,
		plan.SessionID,
		plan.Fingerprint,
		plan.Model,
		passes,
		len(plan.Batches),
	)
	if err != nil {
		return fmt.Errorf("publish cache entry: %w", err)
	}

	p.cleanupRunScratch(ctx, runID)

	p.logger.Info().
		Str("hash", plan.SelectionsHash).
		Str("image", imageKey).
		Int("passes", passes).
		Int("batches", len(plan.Batches)).
		Msg("generation: result published")
	return nil
}

func (p *Publisher) cleanupRunScratch(ctx context.Context, runID uuid.UUID) {
	prefix := fmt.Sprintf("tmp/runs/%s/", runID)
	keys, err := p.store.List(ctx, prefix)
	if err != nil {
		p.logger.Warn().Err(err).Str("prefix", prefix).Msg("generation: scratch listing failed")
		return
	}
	for _, key := range keys {
		if err := p.store.Delete(ctx, key); err != nil {
			p.logger.Warn().Err(err).Str("key", key).Msg("generation: scratch cleanup failed")
		}
	}
}
