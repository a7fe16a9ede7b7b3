package generation

import (
	"context"
	"fmt"
	"time"

	"roomviz/internal/domain"
	"roomviz/internal/infra"
	"roomviz/internal/sqlinline"
)

// ClaimInput identifies the slot being claimed and the metadata stored on the
// pending row.
type ClaimInput struct {
	SelectionsHash string
	SelectionsJSON []byte
	OrgID          string
	PhotoID        string
	StepID         string
	SessionID      string
	Model          string
}

// ClaimResult reports how a claim attempt resolved.
type ClaimResult struct {
	// Claimed means this process won the slot and must run the pipeline.
	Claimed bool
	// CachedPath is set when a completed entry already covers the hash.
	CachedPath string
}

// Claimer serializes generation work per selections hash across all
// instances. The only synchronization primitive is the cache table's unique
// constraint: inserting the pending sentinel either wins or collides.
type Claimer struct {
	db         infra.SQLExecutor
	staleAfter time.Duration
	logger     infra.Logger
}

func NewClaimer(db infra.SQLExecutor, staleAfter time.Duration, logger infra.Logger) *Claimer {
	return &Claimer{db: db, staleAfter: staleAfter, logger: logger}
}

// Claim attempts to take the generation slot for the hash. Before inserting it
// sweeps a stale pending row left by a crashed run, so abandoned claims heal
// on the next request rather than wedging the hash forever. On collision it
// distinguishes a completed entry (cache hit) from a live claim.
func (c *Claimer) Claim(ctx context.Context, in ClaimInput) (ClaimResult, error) {
	cutoff := time.Now().Add(-c.staleAfter)
	if _, err := c.db.Exec(ctx, sqlinline.QDeleteStalePending, in.SelectionsHash, cutoff); err != nil {
		return ClaimResult{}, fmt.Errorf("sweep stale pending: %w", err)
	}

	_, err := c.db.Exec(ctx, sqlinline.QInsertPendingEntry,
		in.SelectionsHash, in.SelectionsJSON, in.OrgID, in.PhotoID, in.StepID, in.SessionID, in.Model)
	if err == nil {
		return ClaimResult{Claimed: true}, nil
	}
	if !infra.IsUniqueViolation(err) {
		return ClaimResult{}, fmt.Errorf("insert pending entry: %w", err)
	}

	// Lost the race. Either a completed entry landed between our cache check
	// and now, or another instance holds the slot.
	var imagePath string
	scanErr := c.db.QueryRow(ctx, sqlinline.QSelectCompletedEntry, in.SelectionsHash).Scan(&imagePath)
	if scanErr == nil {
		return ClaimResult{CachedPath: imagePath}, nil
	}
	if infra.IsNoRows(scanErr) {
		return ClaimResult{}, domain.ErrAlreadyInProgress
	}
	return ClaimResult{}, fmt.Errorf("inspect colliding entry: %w", scanErr)
}

// Release drops the pending row so a later request can retry. Used when
// planning or dispatch fails after a successful claim; the publisher's upsert
// replaces the row on success instead.
func (c *Claimer) Release(ctx context.Context, selectionsHash string) {
	if _, err := c.db.Exec(ctx, sqlinline.QReleasePendingEntry, selectionsHash); err != nil {
		c.logger.Error().Err(err).Str("hash", selectionsHash).Msg("release pending entry")
	}
}

// PurgeCompleted removes a completed cache row ahead of a forced re-render.
// Pending rows are left alone so an in-flight run is never orphaned.
func (c *Claimer) PurgeCompleted(ctx context.Context, selectionsHash string) error {
	if _, err := c.db.Exec(ctx, sqlinline.QDeleteCompletedEntry, selectionsHash); err != nil {
		return fmt.Errorf("purge completed entry: %w", err)
	}
	return nil
}

// CompletedPath returns the published image path for the hash, or
// domain.ErrNotFound when no completed row exists.
func (c *Claimer) CompletedPath(ctx context.Context, selectionsHash string) (string, error) {
	var imagePath string
	err := c.db.QueryRow(ctx, sqlinline.QSelectCompletedEntry, selectionsHash).Scan(&imagePath)
	if infra.IsNoRows(err) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select completed entry: %w", err)
	}
	return imagePath, nil
}

// Status resolves the poll view of a hash.
func (c *Claimer) Status(ctx context.Context, selectionsHash string) (domain.GenerationStatus, string, error) {
	var imagePath string
	var updatedAt time.Time
	err := c.db.QueryRow(ctx, sqlinline.QSelectEntryStatus, selectionsHash).Scan(&imagePath, &updatedAt)
	if infra.IsNoRows(err) {
		return domain.StatusNotFound, "", nil
	}
	if err != nil {
		return domain.StatusError, "", err
	}
	if imagePath == domain.PendingImagePath {
		return domain.StatusPending, "", nil
	}
	return domain.StatusComplete, imagePath, nil
}
