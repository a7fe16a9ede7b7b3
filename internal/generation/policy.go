package generation

import (
	"fmt"
	"strings"

	"roomviz/internal/catalog"
	"roomviz/internal/domain"
)

// ResolvePolicy evaluates a photo's stored generation policy against the
// current selections and model. A nil result means no policy-driven second
// pass applies. The resolved value (including the policy key) feeds the cache
// key, so a policy edit invalidates previously cached renders.
func ResolvePolicy(policy *domain.GenerationPolicy, selections domain.SelectionSet, model string) *domain.ResolvedPolicy {
	if policy == nil || !policy.Active {
		return nil
	}
	resolved := &domain.ResolvedPolicy{
		PolicyKey: policy.PolicyKey,
		Overrides: policy.Overrides,
	}
	if sp := policy.SecondPass; sp != nil && secondPassApplies(sp, selections, model) {
		resolved.SecondPass = &domain.ResolvedSecondPass{
			Reason:        sp.Reason,
			Prompt:        sp.Prompt,
			InputFidelity: sp.InputFidelity,
		}
	}
	return resolved
}

func secondPassApplies(sp *domain.SecondPassSpec, selections domain.SelectionSet, model string) bool {
	if strings.TrimSpace(sp.Prompt) == "" {
		return false
	}
	if len(sp.Models) > 0 && !containsFold(sp.Models, model) {
		return false
	}
	trigger := sp.WhenSelected
	if trigger == nil {
		return true
	}
	// A trigger with no option list matches any selected option in its
	// subcategory.
	optID, ok := selections[trigger.SubcategoryID]
	if !ok {
		return false
	}
	if len(trigger.OptionIDs) > 0 && !containsFold(trigger.OptionIDs, optID) {
		return false
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// slideInRangeOptions are the range models known to render with a misplaced
// control panel on the first pass. Only these options earn the extra
// correction stage; everything else skips it.
var slideInRangeOptions = map[string]struct{}{
	"range-ge-gas-slide-in":            {},
	"range-ge-gas-slide-in-convection": {},
}

const rangeSubcategoryID = "range"

// ResolveRangeCorrection returns the fixed-form correction spec when the
// selections include a slide-in range, or nil when the stage should be
// skipped.
func ResolveRangeCorrection(selections domain.SelectionSet, lookup catalog.OptionLookup) *domain.RangeCorrectionSpec {
	optID, ok := selections[rangeSubcategoryID]
	if !ok {
		return nil
	}
	if _, ok := slideInRangeOptions[optID]; !ok {
		return nil
	}
	spec := &domain.RangeCorrectionSpec{OptionName: optID}
	if rec, found := lookup.Get(rangeSubcategoryID, optID); found {
		spec.OptionName = rec.OptionName
		spec.Descriptor = rec.Descriptor
		spec.SwatchPath = rec.SwatchPath
	}
	return spec
}

// BuildRangeCorrectionPrompt renders the instruction text for the slide-in
// range correction stage.
func BuildRangeCorrectionPrompt(spec domain.RangeCorrectionSpec) BatchPrompt {
	var b strings.Builder
	fmt.Fprintf(&b, "This kitchen photo should show this exact range model: %s", spec.OptionName)
	if d := strings.TrimSpace(spec.Descriptor); d != "" {
		fmt.Fprintf(&b, " (%s)", d)
	}
	b.WriteString(".\n\n")
	b.WriteString(`A slide-in range has its control knobs on a front panel at counter height and NO raised control panel behind the cooktop. If the range in this photo has a raised back panel with controls, remove it and move the controls to the front. If it already matches, return the image unchanged.

RULES:
- Change ONLY the range. Every other surface, finish, object, and color stays exactly as-is.
- Keep the range in the same location, opening, and approximate footprint.
- Keep the exact camera angle, perspective, and lighting.
- Photorealistic result with accurate shadows and reflections.
`)
	prompt := BatchPrompt{Text: strings.TrimRight(b.String(), "\n")}
	if spec.SwatchPath != "" {
		prompt.Text += "\n- The attached reference image shows the correct model; match its form factor."
		prompt.References = []SwatchRef{{Label: spec.OptionName, Path: spec.SwatchPath}}
	}
	return prompt
}
