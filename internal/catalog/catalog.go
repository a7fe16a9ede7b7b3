package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"roomviz/internal/domain"
	"roomviz/internal/infra"
	"roomviz/internal/sqlinline"
)

// OptionRecord is one catalog option joined with its subcategory, resolved
// for prompt building and batch planning.
type OptionRecord struct {
	SubcategoryID   string
	SubcategoryName string
	IsAppliance     bool
	OptionID        string
	OptionName      string
	Descriptor      string
	SwatchPath      string
	// SubcategoryRules apply to every option of the subcategory;
	// OptionRules are specific to this option. Rules merges both in that
	// order for prompt building.
	SubcategoryRules []string
	OptionRules      []string
	Rules            []string
}

// OptionLookup indexes option records by "subcategoryID:optionID".
type OptionLookup map[string]OptionRecord

// Get resolves a selection against the lookup.
func (l OptionLookup) Get(subID, optID string) (OptionRecord, bool) {
	rec, ok := l[subID+":"+optID]
	return rec, ok
}

// PhotoConfig carries everything the pipeline needs to know about one room
// photo: its base image, its selection scope, and its prompt context.
type PhotoConfig struct {
	ID               string
	OrgID            string
	StepID           string
	ImagePath        string
	SubcategoryIDs   []string
	AlsoIncludeIDs   []string
	SceneDescription string
	PhotoBaseline    string
	SpatialHints     map[string]string
	SpatialHint      string
}

// AllowedSubcategories returns the scoping set for this photo, or nil when
// the photo declares no scope (everything allowed).
func (p *PhotoConfig) AllowedSubcategories() map[string]struct{} {
	if len(p.SubcategoryIDs) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(p.SubcategoryIDs)+len(p.AlsoIncludeIDs))
	for _, id := range p.SubcategoryIDs {
		allowed[id] = struct{}{}
	}
	for _, id := range p.AlsoIncludeIDs {
		allowed[id] = struct{}{}
	}
	return allowed
}

// Catalog is the read-only boundary to the options/photos schema, which is
// owned by the admin surfaces outside this service.
type Catalog interface {
	PhotoConfig(ctx context.Context, photoID string) (*PhotoConfig, error)
	OptionLookup(ctx context.Context, orgID string) (OptionLookup, error)
	GenerationPolicy(ctx context.Context, orgID, photoID string) (*domain.GenerationPolicy, error)
}

// Store implements Catalog against Postgres.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) PhotoConfig(ctx context.Context, photoID string) (*PhotoConfig, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectPhotoConfig, photoID)
	var cfg PhotoConfig
	var hintsRaw []byte
	if err := row.Scan(
		&cfg.ID,
		&cfg.OrgID,
		&cfg.StepID,
		&cfg.ImagePath,
		&cfg.SubcategoryIDs,
		&cfg.AlsoIncludeIDs,
		&cfg.SceneDescription,
		&cfg.PhotoBaseline,
		&hintsRaw,
		&cfg.SpatialHint,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("catalog: load photo config: %w", err)
	}
	cfg.SpatialHints = map[string]string{}
	if len(hintsRaw) > 0 {
		if err := json.Unmarshal(hintsRaw, &cfg.SpatialHints); err != nil {
			return nil, fmt.Errorf("catalog: decode spatial hints: %w", err)
		}
	}
	return &cfg, nil
}

func (s *Store) OptionLookup(ctx context.Context, orgID string) (OptionLookup, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QSelectOptionLookup, orgID)
	if err != nil {
		return nil, fmt.Errorf("catalog: load options: %w", err)
	}
	defer rows.Close()

	lookup := make(OptionLookup)
	for rows.Next() {
		var rec OptionRecord
		if err := rows.Scan(
			&rec.SubcategoryID,
			&rec.SubcategoryName,
			&rec.IsAppliance,
			&rec.SubcategoryRules,
			&rec.OptionID,
			&rec.OptionName,
			&rec.Descriptor,
			&rec.SwatchPath,
			&rec.OptionRules,
		); err != nil {
			return nil, fmt.Errorf("catalog: scan option: %w", err)
		}
		rec.Rules = append(append([]string{}, rec.SubcategoryRules...), rec.OptionRules...)
		lookup[rec.SubcategoryID+":"+rec.OptionID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate options: %w", err)
	}
	return lookup, nil
}

func (s *Store) GenerationPolicy(ctx context.Context, orgID, photoID string) (*domain.GenerationPolicy, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectPhotoPolicy, orgID, photoID)
	var policyKey string
	var active bool
	var policyRaw []byte
	if err := row.Scan(&policyKey, &active, &policyRaw); err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: load photo policy: %w", err)
	}

	policy := &domain.GenerationPolicy{PolicyKey: policyKey, Active: active}
	if len(policyRaw) > 0 {
		var payload struct {
			PromptOverrides *domain.PromptOverrides `json:"promptOverrides"`
			SecondPass      *domain.SecondPassSpec  `json:"secondPass"`
		}
		if err := json.Unmarshal(policyRaw, &payload); err != nil {
			return nil, fmt.Errorf("catalog: decode policy json: %w", err)
		}
		policy.Overrides = payload.PromptOverrides
		policy.SecondPass = payload.SecondPass
	}
	return policy, nil
}

var _ Catalog = (*Store)(nil)
