package generation

import (
	"strings"
	"testing"

	"roomviz/internal/domain"
)

func TestBuildBatchPromptNumbersSwatches(t *testing.T) {
	batch := domain.Batch{Entries: []domain.BatchEntry{
		{SubcategoryID: "flooring", SubcategoryName: "Flooring", OptionName: "Natural Oak", SwatchPath: "swatches/oak.png"},
		{SubcategoryID: "countertop", SubcategoryName: "Countertop", OptionName: "Calacatta", SwatchPath: "swatches/quartz.png"},
	}}
	prompt := BuildBatchPrompt(batch, PromptContext{}, nil, nil)

	if len(prompt.References) != 2 {
		t.Fatalf("got %d references, want 2", len(prompt.References))
	}
	if prompt.References[0].Path != "swatches/oak.png" || prompt.References[1].Path != "swatches/quartz.png" {
		t.Fatalf("reference order does not follow entry order: %+v", prompt.References)
	}
	if !strings.Contains(prompt.Text, "1. Flooring (use swatch #1)") {
		t.Errorf("missing first numbered line:\n%s", prompt.Text)
	}
	if !strings.Contains(prompt.Text, "2. Countertop (use swatch #2)") {
		t.Errorf("missing second numbered line:\n%s", prompt.Text)
	}
	if !strings.Contains(prompt.Text, "ordered #1..#2") {
		t.Errorf("missing swatch mapping rule:\n%s", prompt.Text)
	}
}

func TestBuildBatchPromptTextOnlyFallback(t *testing.T) {
	batch := domain.Batch{Entries: []domain.BatchEntry{
		{SubcategoryID: "hardware", SubcategoryName: "Cabinet Hardware", OptionName: "Matte Black Pull", Descriptor: "matte black bar pull"},
	}}
	prompt := BuildBatchPrompt(batch, PromptContext{}, nil, nil)

	if len(prompt.References) != 0 {
		t.Fatalf("text-only batch produced %d references", len(prompt.References))
	}
	if !strings.Contains(prompt.Text, "no swatch image available; follow text exactly") {
		t.Errorf("missing no-swatch fallback:\n%s", prompt.Text)
	}
	if !strings.Contains(prompt.Text, "Matte Black Pull (matte black bar pull)") {
		t.Errorf("missing option name and descriptor:\n%s", prompt.Text)
	}
}

func TestBuildBatchPromptEmptyBatchPassThrough(t *testing.T) {
	prompt := BuildBatchPrompt(domain.Batch{}, PromptContext{SceneDescription: "kitchen"}, nil, nil)
	if prompt.Text != passThroughPrompt {
		t.Fatalf("empty batch prompt = %q", prompt.Text)
	}
	if len(prompt.References) != 0 {
		t.Fatalf("empty batch carries references")
	}
}

func TestBuildBatchPromptSpatialHints(t *testing.T) {
	batch := domain.Batch{Entries: []domain.BatchEntry{
		{SubcategoryID: "flooring", SubcategoryName: "Flooring", OptionName: "Oak", SwatchPath: "s.png", SpatialHint: "main floor, not bathroom"},
	}}
	prompt := BuildBatchPrompt(batch, PromptContext{}, nil, nil)
	if !strings.Contains(prompt.Text, "→ apply to main floor, not bathroom") {
		t.Errorf("missing spatial hint target:\n%s", prompt.Text)
	}
}

func TestBuildBatchPromptWallPaintRules(t *testing.T) {
	wallOnly := domain.Batch{Entries: []domain.BatchEntry{
		{SubcategoryID: "common-wall-paint", SubcategoryName: "Wall Paint", OptionName: "Agreeable Gray", SwatchPath: "p.png"},
	}}
	prompt := BuildBatchPrompt(wallOnly, PromptContext{}, nil, nil)
	if !strings.Contains(prompt.Text, "ALL visible painted drywall wall surfaces") {
		t.Errorf("wall-only rules missing:\n%s", prompt.Text)
	}

	both := domain.Batch{Entries: []domain.BatchEntry{
		{SubcategoryID: "common-wall-paint", SubcategoryName: "Wall Paint", OptionName: "Agreeable Gray", SwatchPath: "p.png"},
		{SubcategoryID: "accent-color", SubcategoryName: "Accent Color", OptionName: "Naval", SwatchPath: "a.png"},
	}}
	prompt = BuildBatchPrompt(both, PromptContext{}, nil, nil)
	if !strings.Contains(prompt.Text, "separate wall-finish targets") {
		t.Errorf("combined wall/accent rules missing:\n%s", prompt.Text)
	}
}

func TestBuildBatchPromptApplianceMode(t *testing.T) {
	batch := domain.Batch{Entries: []domain.BatchEntry{
		{SubcategoryID: "range", SubcategoryName: "Range", OptionName: "GE Gas Slide-In", IsAppliance: true, SwatchPath: "r.png"},
	}}
	prompt := BuildBatchPrompt(batch, PromptContext{}, nil, nil)
	if !strings.Contains(prompt.Text, "appliance models") {
		t.Errorf("appliance header missing:\n%s", prompt.Text)
	}
	if !strings.Contains(prompt.Text, "Range: GE Gas Slide-In") {
		t.Errorf("appliance line should name the model:\n%s", prompt.Text)
	}
	if !strings.Contains(prompt.Text, "Replace ONLY the selected appliance in-place") {
		t.Errorf("appliance rules missing:\n%s", prompt.Text)
	}
}

func TestBuildBatchPromptOverrides(t *testing.T) {
	overrides := &domain.PromptOverrides{
		InvariantRulesAlways:       []string{"never repaint the ceiling"},
		InvariantRulesWhenSelected: map[string][]string{"flooring": {"keep stair nosing"}},
		InvariantRulesWhenNotSelected: map[string][]string{
			"countertop": {"countertops stay builder standard"},
		},
	}
	batch := domain.Batch{Entries: []domain.BatchEntry{
		{SubcategoryID: "flooring", SubcategoryName: "Flooring", OptionName: "Oak", SwatchPath: "s.png", Rules: []string{"keep vents"}},
	}}
	prompt := BuildBatchPrompt(batch, PromptContext{}, overrides, nil)

	for _, want := range []string{
		"never repaint the ceiling",
		"keep stair nosing",
		"countertops stay builder standard",
		"keep vents",
	} {
		if !strings.Contains(prompt.Text, want) {
			t.Errorf("missing rule %q:\n%s", want, prompt.Text)
		}
	}
}

func TestBuildBatchPromptSceneBlocks(t *testing.T) {
	batch := domain.Batch{Entries: []domain.BatchEntry{
		{SubcategoryID: "flooring", SubcategoryName: "Flooring", OptionName: "Oak", SwatchPath: "s.png"},
	}}
	prompt := BuildBatchPrompt(batch, PromptContext{
		SceneDescription: "open-concept kitchen facing the island",
		PhotoBaseline:    "builder-standard finishes throughout",
		PhotoSpatialHint: "bathroom visible through left doorway",
	}, nil, nil)
	if !strings.HasPrefix(prompt.Text, "SCENE: open-concept kitchen facing the island") {
		t.Errorf("scene block should lead the prompt:\n%s", prompt.Text)
	}
	if !strings.Contains(prompt.Text, "PHOTO_BASELINE: builder-standard finishes throughout") {
		t.Errorf("photo baseline block missing:\n%s", prompt.Text)
	}
	if !strings.Contains(prompt.Text, "PHOTO_LAYOUT: bathroom visible through left doorway") {
		t.Errorf("photo layout block missing:\n%s", prompt.Text)
	}
}

func TestBuildBatchPromptAnchors(t *testing.T) {
	anchor := func(path string) string {
		if path == "swatches/oak.png" {
			return "#A1B2C3"
		}
		return ""
	}
	batch := domain.Batch{Entries: []domain.BatchEntry{
		{SubcategoryID: "flooring", SubcategoryName: "Flooring", OptionName: "Oak", SwatchPath: "swatches/oak.png"},
		{SubcategoryID: "countertop", SubcategoryName: "Countertop", OptionName: "Quartz", SwatchPath: "swatches/quartz.png"},
	}}
	prompt := BuildBatchPrompt(batch, PromptContext{}, nil, anchor)
	if !strings.Contains(prompt.Text, "swatch-derived color anchor #A1B2C3") {
		t.Errorf("anchor missing for oak swatch:\n%s", prompt.Text)
	}
	if strings.Contains(prompt.Text, "2. Countertop (use swatch #2; swatch-derived") {
		t.Errorf("anchor should be skipped when empty:\n%s", prompt.Text)
	}
}
