package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/google/uuid"

	"roomviz/internal/domain"
	"roomviz/internal/infra"
	"roomviz/internal/providers/imageedit"
	"roomviz/internal/sqlinline"
	"roomviz/internal/storage"
)

// Engine executes generation runs one stage at a time against the run queue.
// Every claim loads the serialized plan, performs exactly the next stage, and
// hands the run back, so any worker on any instance can pick up the next
// stage. Stage inputs and outputs travel through object storage, never memory.
type Engine struct {
	db            infra.SQLExecutor
	store         storage.ObjectStore
	editor        imageedit.Editor
	publisher     *Publisher
	attemptBudget int
	logger        infra.Logger
}

func NewEngine(db infra.SQLExecutor, store storage.ObjectStore, editor imageedit.Editor, publisher *Publisher, attemptBudget int, logger infra.Logger) *Engine {
	if attemptBudget <= 0 {
		attemptBudget = 3
	}
	return &Engine{
		db:            db,
		store:         store,
		editor:        editor,
		publisher:     publisher,
		attemptBudget: attemptBudget,
		logger:        logger,
	}
}

// Dispatch enqueues a run for the plan. Callers must already hold the pending
// claim for the plan's hash.
func (e *Engine) Dispatch(ctx context.Context, plan *domain.RunPlan) (uuid.UUID, error) {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal run plan: %w", err)
	}
	id := uuid.New()
	stageCount := len(plan.Stages())
	if _, err := e.db.Exec(ctx, sqlinline.QEnqueueRun, id, plan.SelectionsHash, stageCount, planJSON); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue run: %w", err)
	}
	e.logger.Info().
		Str("run_id", id.String()).
		Str("hash", plan.SelectionsHash).
		Int("stages", stageCount).
		Msg("generation: run dispatched")
	return id, nil
}

// RunOnce claims and executes at most one stage. It reports whether a stage
// was claimed so callers can back off when the queue is empty.
func (e *Engine) RunOnce(ctx context.Context) (bool, error) {
	var (
		id         uuid.UUID
		hash       string
		stageIndex int
		stageCount int
		attempts   int
		planJSON   []byte
		trail      string
	)
	err := e.db.QueryRow(ctx, sqlinline.QClaimRunStage).
		Scan(&id, &hash, &stageIndex, &stageCount, &attempts, &planJSON, &trail)
	if infra.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim run stage: %w", err)
	}

	var plan domain.RunPlan
	if err := json.Unmarshal(planJSON, &plan); err != nil {
		// An undecodable plan can never make progress.
		e.failRun(ctx, id, hash, fmt.Errorf("unmarshal run plan: %w", err))
		return true, nil
	}
	stages := plan.Stages()
	if stageIndex < 0 || stageIndex >= len(stages) {
		e.failRun(ctx, id, hash, fmt.Errorf("stage index %d out of range (%d stages)", stageIndex, len(stages)))
		return true, nil
	}

	e.executeStage(ctx, runClaim{
		id:         id,
		hash:       hash,
		stageIndex: stageIndex,
		attempts:   attempts,
		trail:      trail,
		plan:       &plan,
		stages:     stages,
	})
	return true, nil
}

type runClaim struct {
	id         uuid.UUID
	hash       string
	stageIndex int
	attempts   int
	trail      string
	plan       *domain.RunPlan
	stages     []domain.Stage
}

func (e *Engine) executeStage(ctx context.Context, claim runClaim) {
	stage := claim.stages[claim.stageIndex]
	log := e.logger.With().
		Str("run_id", claim.id.String()).
		Str("hash", claim.hash).
		Str("stage", stage.Label).
		Int("stage_index", claim.stageIndex).
		Logger()

	input, err := e.stageInput(ctx, claim)
	if err != nil {
		// The previous stage's output is gone; no retry of this stage can
		// recover it.
		e.failRun(ctx, claim.id, claim.hash, fmt.Errorf("load stage input: %w", err))
		return
	}

	output, promptText, stageErr := e.renderStage(ctx, claim, stage, input)
	if stageErr != nil {
		if stage.Kind == domain.StageBatch {
			e.handleMandatoryFailure(ctx, claim, stageErr, log)
			return
		}
		// Correction stages never sink the run; the previous frame carries
		// forward so downstream stages and publication stay intact.
		log.Warn().Err(stageErr).Msg("generation: correction stage failed; keeping previous output")
		output = input
		claim.trail = appendTrailNote(claim.trail, fmt.Sprintf("[correction-pass %s failed: kept previous output]", stage.Label))
	}

	tmpKey := stageOutputKey(claim.id, claim.stageIndex)
	if _, err := e.store.Write(ctx, tmpKey, output); err != nil {
		e.handleMandatoryFailure(ctx, claim, fmt.Errorf("store stage output: %w", err), log)
		return
	}

	debugKey := debugArtifactKey(claim.id, claim.stageIndex, stage.Label)
	if _, err := e.store.Write(ctx, debugKey, output); err != nil {
		// Debug artifacts are an audit trail, not a pipeline dependency.
		log.Warn().Err(err).Str("key", debugKey).Msg("generation: debug artifact write failed")
	} else {
		claim.trail = appendTrailArtifact(claim.trail, domain.PassArtifact{
			Seq:   claim.stageIndex + 1,
			Label: stage.Label,
			Path:  debugKey,
		})
	}

	if claim.stageIndex+1 < len(claim.stages) {
		if _, err := e.db.Exec(ctx, sqlinline.QAdvanceRunStage, claim.id, claim.stageIndex+1, claim.trail); err != nil {
			log.Error().Err(err).Msg("generation: advance run stage")
			return
		}
		log.Info().Msg("generation: stage complete")
		return
	}

	if err := e.publisher.Publish(ctx, claim.plan, claim.id, output, promptText, len(claim.stages)); err != nil {
		e.handleMandatoryFailure(ctx, claim, fmt.Errorf("publish result: %w", err), log)
		return
	}
	if _, err := e.db.Exec(ctx, sqlinline.QCompleteRun, claim.id, claim.trail); err != nil {
		log.Error().Err(err).Msg("generation: mark run complete")
	}
	log.Info().Msg("generation: run complete")
}

// stageInput resolves this stage's source frame: the base room photo for the
// first stage, otherwise the previous stage's stored output.
func (e *Engine) stageInput(ctx context.Context, claim runClaim) ([]byte, error) {
	if claim.stageIndex == 0 {
		return e.store.Read(ctx, claim.plan.BaseImagePath)
	}
	return e.store.Read(ctx, stageOutputKey(claim.id, claim.stageIndex-1))
}

func (e *Engine) renderStage(ctx context.Context, claim runClaim, stage domain.Stage, input []byte) ([]byte, string, error) {
	prompt, fidelity := e.stagePrompt(claim.plan, stage)

	refs := make([]imageedit.Reference, 0, len(prompt.References))
	for i, swatch := range prompt.References {
		data, err := e.store.Read(ctx, swatch.Path)
		if err != nil {
			return nil, "", fmt.Errorf("load swatch %q: %w", swatch.Path, err)
		}
		refs = append(refs, imageedit.Reference{
			Name: fmt.Sprintf("swatch-%d.png", i+1),
			Data: data,
		})
	}

	edited, err := e.editor.Edit(ctx, imageedit.Request{
		Prompt:        prompt.Text,
		Model:         claim.plan.Model,
		InputFidelity: fidelity,
		Input:         input,
		References:    refs,
		RequestID:     claim.id.String(),
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", domain.ErrStageFailed, stage.Label, err)
	}
	if edited == nil || len(edited.Data) == 0 {
		return nil, "", fmt.Errorf("%w: %s: provider returned empty frame", domain.ErrStageFailed, stage.Label)
	}
	return edited.Data, prompt.Text, nil
}

func (e *Engine) stagePrompt(plan *domain.RunPlan, stage domain.Stage) (BatchPrompt, string) {
	const defaultFidelity = "high"
	switch stage.Kind {
	case domain.StagePolicyCorrection:
		sp := plan.Policy.SecondPass
		fidelity := defaultFidelity
		if sp != nil && sp.InputFidelity != "" {
			fidelity = sp.InputFidelity
		}
		text := ""
		if sp != nil {
			text = sp.Prompt
		}
		return BatchPrompt{Text: text}, fidelity
	case domain.StageRangeCorrection:
		return BuildRangeCorrectionPrompt(*plan.RangeCorrection), defaultFidelity
	default:
		promptCtx := PromptContext{
			SceneDescription: plan.SceneDescription,
			PhotoBaseline:    plan.PhotoBaseline,
			PhotoSpatialHint: plan.PhotoSpatialHint,
		}
		return BuildBatchPrompt(plan.Batches[stage.Batch], promptCtx, plan.Policy.Overrides, e.swatchAnchor), defaultFidelity
	}
}

// swatchAnchor averages the swatch's pixels into a single hex color, giving
// the prompt a numeric target alongside the visual reference.
func (e *Engine) swatchAnchor(path string) string {
	data, err := e.store.Read(context.Background(), path)
	if err != nil {
		return ""
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return ""
	}
	var rSum, gSum, bSum, count uint64
	// Sample a coarse grid; swatches are small and uniform.
	stepX := maxInt(1, bounds.Dx()/32)
	stepY := maxInt(1, bounds.Dy()/32)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += uint64(r >> 8)
			gSum += uint64(g >> 8)
			bSum += uint64(b >> 8)
			count++
		}
	}
	if count == 0 {
		return ""
	}
	return fmt.Sprintf("#%02X%02X%02X", rSum/count, gSum/count, bSum/count)
}

func (e *Engine) handleMandatoryFailure(ctx context.Context, claim runClaim, stageErr error, log infra.Logger) {
	attempts := claim.attempts + 1
	if attempts < e.attemptBudget {
		log.Warn().Err(stageErr).Int("attempts", attempts).Msg("generation: stage failed; requeued")
		if _, err := e.db.Exec(ctx, sqlinline.QRequeueRunAttempt, claim.id, attempts, stageErr.Error()); err != nil {
			log.Error().Err(err).Msg("generation: requeue run attempt")
		}
		return
	}
	log.Error().Err(stageErr).Int("attempts", attempts).Msg("generation: stage failed permanently")
	e.failRun(ctx, claim.id, claim.hash, stageErr)
}

// failRun finishes the run as FAILED. The pending cache row is deliberately
// left in place: the stale-pending sweep releases the hash after the timeout,
// which throttles immediate retry storms against a failing provider.
func (e *Engine) failRun(ctx context.Context, id uuid.UUID, hash string, cause error) {
	if _, err := e.db.Exec(ctx, sqlinline.QFailRun, id, cause.Error()); err != nil {
		e.logger.Error().Err(err).Str("run_id", id.String()).Msg("generation: mark run failed")
	}
	e.logger.Error().Err(cause).Str("run_id", id.String()).Str("hash", hash).Msg("generation: run failed")
}

func stageOutputKey(runID uuid.UUID, stageIndex int) string {
	return fmt.Sprintf("tmp/runs/%s/stage-%d.png", runID, stageIndex)
}

func debugArtifactKey(runID uuid.UUID, stageIndex int, label string) string {
	return fmt.Sprintf("debug/runs/%s/%02d-%s.png", runID, stageIndex+1, label)
}

func appendTrailArtifact(trail string, artifact domain.PassArtifact) string {
	entry, err := json.Marshal(artifact)
	if err != nil {
		return trail
	}
	return appendTrailNote(trail, string(entry))
}

func appendTrailNote(trail, note string) string {
	if strings.TrimSpace(trail) == "" {
		return note
	}
	return trail + "\n" + note
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
