package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"roomviz/internal/analytics"
	"roomviz/internal/domain"
	"roomviz/internal/generation"
	"roomviz/internal/middleware"
)

type generateRequest struct {
	PhotoID    string              `json:"photoId"`
	SessionID  string              `json:"sessionId"`
	Model      string              `json:"model,omitempty"`
	ForceRetry bool                `json:"forceRetry,omitempty"`
	Selections domain.SelectionSet `json:"selections"`
}

type generateResponse struct {
	Status         string `json:"status"`
	SelectionsHash string `json:"selectionsHash"`
	ImageURL       string `json:"imageUrl,omitempty"`
	PollURL        string `json:"pollUrl,omitempty"`
}

// GenerationsSubmit derives the cache key for the request, answers from cache
// when the image already exists, and otherwise claims the generation slot and
// dispatches a background run. The claim is the only write that races with
// other instances; everything before it is read-only.
func (a *App) GenerationsSubmit(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.PhotoID = strings.TrimSpace(req.PhotoID)
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.PhotoID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "photoId required")
		return
	}
	if req.SessionID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "sessionId required")
		return
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = a.DefaultModel
	}
	if req.Selections == nil {
		req.Selections = domain.SelectionSet{}
	}

	ctx := r.Context()
	cfg, err := a.Catalog.PhotoConfig(ctx, req.PhotoID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "photo not found")
			return
		}
		a.Logger.Error().Err(err).Str("photo_id", req.PhotoID).Msg("generate: load photo config")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load photo")
		return
	}

	lookup, err := a.Catalog.OptionLookup(ctx, cfg.OrgID)
	if err != nil {
		a.Logger.Error().Err(err).Str("org_id", cfg.OrgID).Msg("generate: load option lookup")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load catalog")
		return
	}

	// Selections outside the photo's scope never affect this image, so they
	// are dropped before key derivation: two carts that differ only in
	// out-of-scope rooms share the cached render.
	scoped := req.Selections.Scoped(cfg.AllowedSubcategories())
	for subID, optID := range scoped {
		if _, ok := lookup.Get(subID, optID); !ok {
			a.error(w, http.StatusBadRequest, "bad_request", "unknown selection "+subID+":"+optID)
			return
		}
	}

	rawPolicy, err := a.Catalog.GenerationPolicy(ctx, cfg.OrgID, cfg.ID)
	if err != nil {
		a.Logger.Error().Err(err).Str("photo_id", cfg.ID).Msg("generate: load policy")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load policy")
		return
	}
	policy := generation.ResolvePolicy(rawPolicy, scoped, model)

	policyKey := "none"
	if policy != nil {
		policyKey = policy.PolicyKey
	}
	hash := generation.DeriveKey(generation.KeyInputs{
		Selections:       scoped,
		PhotoID:          cfg.ID,
		Model:            model,
		PolicyKey:        policyKey,
		ContextSignature: generation.ContextSignature(cfg, scoped, lookup),
	})

	if req.ForceRetry {
		if err := a.Claimer.PurgeCompleted(ctx, hash); err != nil {
			a.Logger.Error().Err(err).Str("hash", hash).Msg("generate: purge for retry")
			a.error(w, http.StatusInternalServerError, "internal", "failed to reset cache entry")
			return
		}
	} else if path, err := a.Claimer.CompletedPath(ctx, hash); err == nil {
		a.json(w, http.StatusOK, generateResponse{
			Status:         string(domain.StatusComplete),
			SelectionsHash: hash,
			ImageURL:       a.assetURL(path),
		})
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		a.Logger.Error().Err(err).Str("hash", hash).Msg("generate: cache check")
		a.error(w, http.StatusInternalServerError, "internal", "failed to check cache")
		return
	}

	selectionsJSON, err := json.Marshal(scoped)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid selections")
		return
	}

	claim, err := a.Claimer.Claim(ctx, generation.ClaimInput{
		SelectionsHash: hash,
		SelectionsJSON: selectionsJSON,
		OrgID:          cfg.OrgID,
		PhotoID:        cfg.ID,
		StepID:         cfg.StepID,
		SessionID:      req.SessionID,
		Model:          model,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyInProgress) {
			a.json(w, http.StatusConflict, generateResponse{
				Status:         string(domain.StatusPending),
				SelectionsHash: hash,
				PollURL:        "/v1/generations/" + hash,
			})
			return
		}
		a.Logger.Error().Err(err).Str("hash", hash).Msg("generate: claim slot")
		a.error(w, http.StatusInternalServerError, "internal", "failed to claim generation slot")
		return
	}
	if claim.CachedPath != "" {
		a.json(w, http.StatusOK, generateResponse{
			Status:         string(domain.StatusComplete),
			SelectionsHash: hash,
			ImageURL:       a.assetURL(claim.CachedPath),
		})
		return
	}

	batches := generation.PlanBatches(scoped, lookup, cfg.SpatialHints)
	plan := &domain.RunPlan{
		SelectionsHash:   hash,
		Fingerprint:      generation.Fingerprint(scoped),
		OrgID:            cfg.OrgID,
		PhotoID:          cfg.ID,
		StepID:           cfg.StepID,
		SessionID:        req.SessionID,
		Model:            model,
		BaseImagePath:    cfg.ImagePath,
		SceneDescription: cfg.SceneDescription,
		PhotoBaseline:    cfg.PhotoBaseline,
		PhotoSpatialHint: cfg.SpatialHint,
		SelectionsJSON:   selectionsJSON,
		Batches:          batches,
		RangeCorrection:  generation.ResolveRangeCorrection(scoped, lookup),
	}
	if policy != nil {
		plan.Policy = *policy
	}

	if _, err := a.Engine.Dispatch(ctx, plan); err != nil {
		a.Claimer.Release(ctx, hash)
		a.Logger.Error().Err(err).Str("hash", hash).Msg("generate: dispatch run")
		a.error(w, http.StatusServiceUnavailable, "unavailable", "failed to dispatch generation")
		return
	}

	a.Analytics.Record(ctx, analytics.Event{
		SessionID: req.SessionID,
		Route:     "generations.submit",
		Model:     model,
		Country:   middleware.CountryFromContext(ctx),
		Locale:    middleware.LocaleFromContext(ctx),
		Properties: map[string]any{
			"selectionsHash": hash,
			"photoId":        cfg.ID,
			"selections":     len(scoped),
			"batches":        len(batches),
			"stages":         len(plan.Stages()),
			"forceRetry":     req.ForceRetry,
		},
	})

	a.json(w, http.StatusAccepted, generateResponse{
		Status:         string(domain.StatusPending),
		SelectionsHash: hash,
		PollURL:        "/v1/generations/" + hash,
	})
}

type pollResponse struct {
	Status   string `json:"status"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// GenerationsPoll reports the cache row's state for a hash. A read failure
// maps to the non-terminal "error" status on a 200 so clients keep polling
// through a transient backend hiccup; only not_found is terminal.
func (a *App) GenerationsPoll(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	if hash == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "hash required")
		return
	}
	status, path, err := a.Claimer.Status(r.Context(), hash)
	if err != nil {
		a.Logger.Error().Err(err).Str("hash", hash).Msg("generate: poll status")
		a.json(w, http.StatusOK, pollResponse{Status: string(domain.StatusError)})
		return
	}
	switch status {
	case domain.StatusNotFound:
		a.json(w, http.StatusNotFound, pollResponse{Status: string(domain.StatusNotFound)})
	case domain.StatusComplete:
		a.json(w, http.StatusOK, pollResponse{Status: string(domain.StatusComplete), ImageURL: a.assetURL(path)})
	default:
		a.json(w, http.StatusOK, pollResponse{Status: string(domain.StatusPending)})
	}
}
