package generation

import (
	"strings"
	"testing"

	"roomviz/internal/catalog"
	"roomviz/internal/domain"
)

func TestResolvePolicyInactive(t *testing.T) {
	policy := &domain.GenerationPolicy{PolicyKey: "k", Active: false}
	if got := ResolvePolicy(policy, domain.SelectionSet{}, "m"); got != nil {
		t.Fatalf("inactive policy resolved: %+v", got)
	}
	if got := ResolvePolicy(nil, domain.SelectionSet{}, "m"); got != nil {
		t.Fatalf("nil policy resolved: %+v", got)
	}
}

func TestResolvePolicySecondPassTriggers(t *testing.T) {
	policy := &domain.GenerationPolicy{
		PolicyKey: "kitchen-v2",
		Active:    true,
		SecondPass: &domain.SecondPassSpec{
			Reason: "cabinet seams",
			Prompt: "re-verify cabinet seam count",
			Models: []string{"gpt-image-1.5"},
			WhenSelected: &domain.SecondPassTrigger{
				SubcategoryID: "cabinets",
				OptionIDs:     []string{"cab-shaker-white"},
			},
		},
	}

	selections := domain.SelectionSet{"cabinets": "cab-shaker-white"}
	resolved := ResolvePolicy(policy, selections, "gpt-image-1.5")
	if resolved == nil || resolved.SecondPass == nil {
		t.Fatal("second pass should trigger")
	}
	if resolved.SecondPass.Prompt != "re-verify cabinet seam count" {
		t.Errorf("prompt = %q", resolved.SecondPass.Prompt)
	}

	// Wrong option.
	resolved = ResolvePolicy(policy, domain.SelectionSet{"cabinets": "cab-flat-oak"}, "gpt-image-1.5")
	if resolved == nil || resolved.SecondPass != nil {
		t.Fatal("second pass should resolve nil for non-matching option, policy key stays")
	}
	if resolved.PolicyKey != "kitchen-v2" {
		t.Errorf("policy key dropped: %q", resolved.PolicyKey)
	}

	// Wrong model.
	if got := ResolvePolicy(policy, selections, "other-model"); got == nil || got.SecondPass != nil {
		t.Fatal("second pass should not trigger for unlisted model")
	}

	// Subcategory not selected at all.
	if got := ResolvePolicy(policy, domain.SelectionSet{}, "gpt-image-1.5"); got == nil || got.SecondPass != nil {
		t.Fatal("second pass should not trigger without the subcategory")
	}
}

func TestResolvePolicyEmptyTriggerMatchesAnyOption(t *testing.T) {
	policy := &domain.GenerationPolicy{
		PolicyKey: "k",
		Active:    true,
		SecondPass: &domain.SecondPassSpec{
			Prompt:       "fix",
			WhenSelected: &domain.SecondPassTrigger{SubcategoryID: "cabinets"},
		},
	}
	got := ResolvePolicy(policy, domain.SelectionSet{"cabinets": "anything"}, "m")
	if got == nil || got.SecondPass == nil {
		t.Fatal("empty option list should match any selected option")
	}
}

func TestResolveRangeCorrectionAllowlist(t *testing.T) {
	lookup := catalog.OptionLookup{
		"range:range-ge-gas-slide-in": {
			SubcategoryID: "range",
			OptionID:      "range-ge-gas-slide-in",
			OptionName:    "GE Gas Slide-In Range",
			Descriptor:    "stainless, front controls",
			SwatchPath:    "swatches/range.png",
		},
		"range:range-ge-gas-freestanding": {
			SubcategoryID: "range",
			OptionID:      "range-ge-gas-freestanding",
			OptionName:    "GE Gas Freestanding Range",
		},
	}

	spec := ResolveRangeCorrection(domain.SelectionSet{"range": "range-ge-gas-slide-in"}, lookup)
	if spec == nil {
		t.Fatal("slide-in range should earn the correction stage")
	}
	if spec.OptionName != "GE Gas Slide-In Range" || spec.SwatchPath != "swatches/range.png" {
		t.Errorf("spec = %+v", spec)
	}

	if got := ResolveRangeCorrection(domain.SelectionSet{"range": "range-ge-gas-freestanding"}, lookup); got != nil {
		t.Fatalf("freestanding range resolved a correction: %+v", got)
	}
	if got := ResolveRangeCorrection(domain.SelectionSet{"flooring": "oak"}, lookup); got != nil {
		t.Fatalf("no range selection resolved a correction: %+v", got)
	}
	if got := ResolveRangeCorrection(domain.SelectionSet{"range": "range-ge-gas-slide-in-convection"}, lookup); got == nil {
		t.Fatal("convection slide-in should also earn the correction stage")
	}
}

func TestBuildRangeCorrectionPrompt(t *testing.T) {
	prompt := BuildRangeCorrectionPrompt(domain.RangeCorrectionSpec{
		OptionName: "GE Gas Slide-In Range",
		Descriptor: "stainless, front controls",
		SwatchPath: "swatches/range.png",
	})
	if !strings.Contains(prompt.Text, "GE Gas Slide-In Range (stainless, front controls)") {
		t.Errorf("model name missing:\n%s", prompt.Text)
	}
	if !strings.Contains(prompt.Text, "Change ONLY the range") {
		t.Errorf("scope rule missing:\n%s", prompt.Text)
	}
	if len(prompt.References) != 1 || prompt.References[0].Path != "swatches/range.png" {
		t.Errorf("references = %+v", prompt.References)
	}

	noSwatch := BuildRangeCorrectionPrompt(domain.RangeCorrectionSpec{OptionName: "GE Gas Slide-In Range"})
	if len(noSwatch.References) != 0 {
		t.Errorf("swatchless spec carries references: %+v", noSwatch.References)
	}
}

func TestRunPlanStages(t *testing.T) {
	plan := &domain.RunPlan{
		Batches: []domain.Batch{{}, {}},
	}
	stages := plan.Stages()
	if len(stages) != 2 || stages[0].Label != "batch-1" || stages[1].Label != "batch-2" {
		t.Fatalf("stages = %+v", stages)
	}

	plan.Policy.SecondPass = &domain.ResolvedSecondPass{Prompt: "fix"}
	plan.RangeCorrection = &domain.RangeCorrectionSpec{OptionName: "r"}
	stages = plan.Stages()
	if len(stages) != 4 {
		t.Fatalf("got %d stages, want 4", len(stages))
	}
	if stages[2].Kind != domain.StagePolicyCorrection || stages[3].Kind != domain.StageRangeCorrection {
		t.Fatalf("correction order wrong: %+v", stages[2:])
	}
}
