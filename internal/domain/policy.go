package domain

// PromptOverrides carries per-photo invariant rules layered on top of the
// catalog-driven prompt. WhenSelected/WhenNotSelected are keyed by
// subcategory id.
type PromptOverrides struct {
	InvariantRulesAlways          []string            `json:"invariantRulesAlways,omitempty"`
	InvariantRulesWhenSelected    map[string][]string `json:"invariantRulesWhenSelected,omitempty"`
	InvariantRulesWhenNotSelected map[string][]string `json:"invariantRulesWhenNotSelected,omitempty"`
}

// SecondPassTrigger limits a policy correction pass to runs where the given
// subcategory holds one of the listed option ids. An empty option list
// triggers on any selection for the subcategory.
type SecondPassTrigger struct {
	SubcategoryID string   `json:"subId"`
	OptionIDs     []string `json:"optionIds,omitempty"`
}

// SecondPassSpec describes an optional policy-driven correction pass.
type SecondPassSpec struct {
	Reason        string             `json:"reason"`
	Prompt        string             `json:"prompt"`
	InputFidelity string             `json:"inputFidelity,omitempty"`
	Models        []string           `json:"models,omitempty"`
	WhenSelected  *SecondPassTrigger `json:"whenSelected,omitempty"`
}

// GenerationPolicy is the raw per-photo policy record as stored.
type GenerationPolicy struct {
	PolicyKey  string
	Active     bool
	Overrides  *PromptOverrides
	SecondPass *SecondPassSpec
}

// ResolvedSecondPass is a second-pass spec whose trigger conditions have
// already been evaluated against the current model and selections.
type ResolvedSecondPass struct {
	Reason        string `json:"reason"`
	Prompt        string `json:"prompt"`
	InputFidelity string `json:"inputFidelity"`
}

// ResolvedPolicy is the immutable policy snapshot a run executes under.
type ResolvedPolicy struct {
	PolicyKey  string              `json:"policyKey"`
	Overrides  *PromptOverrides    `json:"overrides,omitempty"`
	SecondPass *ResolvedSecondPass `json:"secondPass,omitempty"`
}
