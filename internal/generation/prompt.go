package generation

import (
	"fmt"
	"strings"

	"roomviz/internal/domain"
)

// passThroughPrompt is used when a batch carries no resolvable selections.
const passThroughPrompt = "This is a photo of a room in a new-construction home. Return this image unchanged."

// PromptContext carries the per-photo prose folded into every batch prompt.
type PromptContext struct {
	SceneDescription string
	PhotoBaseline    string
	PhotoSpatialHint string
}

// BatchPrompt is the assembled instruction text for one batch stage plus the
// ordered swatch references the stage must attach. References[i] corresponds
// to "swatch #i+1" in the text.
type BatchPrompt struct {
	Text       string
	References []SwatchRef
}

// SwatchRef names one reference image to attach to a generation call.
type SwatchRef struct {
	Label     string
	Path      string
	AnchorHex string
}

// SwatchAnchorFunc derives a representative color anchor (e.g. "#A1B2C3")
// from swatch bytes. Optional; an empty string skips the anchor line.
type SwatchAnchorFunc func(path string) string

// BuildBatchPrompt renders the instruction text for one batch. Entries arrive
// in the planner's deterministic order, which keeps the prompt↔swatch mapping
// stable across retries and processes.
func BuildBatchPrompt(batch domain.Batch, ctx PromptContext, overrides *domain.PromptOverrides, anchor SwatchAnchorFunc) BatchPrompt {
	var listLines []string
	var refs []SwatchRef
	selected := make(map[string]struct{})
	ruleSet := newOrderedSet()
	hasAppliance := false
	listIndex, swatchIndex := 1, 1

	for _, entry := range batch.Entries {
		selected[entry.SubcategoryID] = struct{}{}
		if entry.IsAppliance {
			hasAppliance = true
		}
		for _, rule := range entry.Rules {
			ruleSet.add(rule)
		}

		descriptorSuffix := ""
		if d := strings.TrimSpace(entry.Descriptor); d != "" {
			descriptorSuffix = " (" + d + ")"
		}
		finishLabel := entry.SubcategoryName
		applianceLabel := fmt.Sprintf("%s: %s%s", entry.SubcategoryName, entry.OptionName, descriptorSuffix)
		if entry.SpatialHint != "" {
			finishLabel += " → apply to " + entry.SpatialHint
			applianceLabel += " → apply to " + entry.SpatialHint
		}

		if entry.SwatchPath != "" {
			label := finishLabel
			if entry.IsAppliance {
				label = applianceLabel
			}
			anchorHex := ""
			if anchor != nil {
				anchorHex = anchor(entry.SwatchPath)
			}
			refs = append(refs, SwatchRef{Label: label, Path: entry.SwatchPath, AnchorHex: anchorHex})
			anchorSuffix := ""
			if anchorHex != "" {
				anchorSuffix = "; swatch-derived color anchor " + anchorHex
			}
			listLines = append(listLines, fmt.Sprintf("%d. %s (use swatch #%d%s)", listIndex, label, swatchIndex, anchorSuffix))
			swatchIndex++
		} else {
			listLines = append(listLines, fmt.Sprintf("%d. %s (no swatch image available; follow text exactly)", listIndex, applianceLabel))
		}
		listIndex++
	}

	if len(listLines) == 0 {
		return BatchPrompt{Text: passThroughPrompt}
	}

	applyOverrides(ruleSet, overrides, selected)

	var b strings.Builder
	writeSceneBlock(&b, ctx)
	if hasAppliance {
		b.WriteString("Edit this room photo to match the selected finishes and appliance models.")
	} else {
		b.WriteString("Edit this room photo. Change ONLY the color/texture of these surfaces — nothing else:")
	}
	b.WriteString("\n\n")
	b.WriteString(strings.Join(listLines, "\n"))
	b.WriteString("\n\nRULES:\n")
	if len(refs) > 0 {
		fmt.Fprintf(&b, "- Swatch mapping: after the base room photo, attached swatches are ordered #1..#%d.\n", len(refs))
	} else {
		b.WriteString("- No swatch attachments were provided; use text instructions only.\n")
	}
	b.WriteString(baseEditRules)
	writeWallPaintRules(&b, selected)
	if hasAppliance {
		b.WriteString(applianceRules)
	}
	if rules := ruleSet.values(); len(rules) > 0 {
		b.WriteString("\nCRITICAL FIXED-GEOMETRY RULES:\n")
		for _, rule := range rules {
			b.WriteString("- " + rule + "\n")
		}
	}

	return BatchPrompt{Text: strings.TrimRight(b.String(), "\n"), References: refs}
}

func writeSceneBlock(b *strings.Builder, ctx PromptContext) {
	var lines []string
	if s := strings.TrimSpace(ctx.SceneDescription); s != "" {
		lines = append(lines, "SCENE: "+s)
	}
	if s := strings.TrimSpace(ctx.PhotoBaseline); s != "" {
		lines = append(lines, "PHOTO_BASELINE: "+s)
	}
	if s := strings.TrimSpace(ctx.PhotoSpatialHint); s != "" {
		lines = append(lines, "PHOTO_LAYOUT: "+s)
	}
	if len(lines) > 0 {
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n\n")
	}
}

func applyOverrides(set *orderedSet, overrides *domain.PromptOverrides, selected map[string]struct{}) {
	if overrides == nil {
		return
	}
	for _, rule := range overrides.InvariantRulesAlways {
		set.add(rule)
	}
	for subID, rules := range overrides.InvariantRulesWhenSelected {
		if _, ok := selected[subID]; !ok {
			continue
		}
		for _, rule := range rules {
			set.add(rule)
		}
	}
	for subID, rules := range overrides.InvariantRulesWhenNotSelected {
		if _, ok := selected[subID]; ok {
			continue
		}
		for _, rule := range rules {
			set.add(rule)
		}
	}
}

func writeWallPaintRules(b *strings.Builder, selected map[string]struct{}) {
	_, wall := selected["common-wall-paint"]
	_, accent := selected["accent-color"]
	switch {
	case wall && accent:
		b.WriteString(`- Common Wall Paint and Accent Color are separate wall-finish targets. Keep them in separate wall zones; do NOT blend or average them.
- Accent Color applies only to accent-designated wall zones for this photo.
- Common Wall Paint applies only to non-accent painted drywall wall zones for this photo.
- Do NOT paint non-wall surfaces: tile, cabinets, mirrors, glass, trim, doors, countertops, or flooring unless those categories are explicitly selected.
`)
	case wall:
		b.WriteString(`- Common Wall Paint applies to ALL visible painted drywall wall surfaces across every visible zone/room in frame (including bathroom, closet, hallway, and kitchen zones when visible).
- Do NOT paint non-wall surfaces: tile, cabinets, mirrors, glass, trim, doors, countertops, or flooring unless those categories are explicitly selected.
`)
	case accent:
		b.WriteString(`- Accent Color applies to the accent-designated painted drywall wall zones visible in this photo.
- Do NOT paint non-wall surfaces: tile, cabinets, mirrors, glass, trim, doors, countertops, or flooring unless those categories are explicitly selected.
`)
	}
}

const baseEditRules = `- For each item marked "(use swatch #N)", match that swatch's color, pattern, and texture EXACTLY on the specified surface.
- For swatch-backed finish edits, the swatch image is the ONLY color authority. Treat option names/descriptors as non-authoritative labels for color.
- If a line includes "swatch-derived color anchor #RRGGBB", use it as a numeric target from that swatch image and avoid hue drift.
- For each item marked "(no swatch image available; follow text exactly)", use the text descriptor and keep edits subtle.
- The "→ apply to" text tells you WHERE in the photo to apply each change. Treat each listed target as a separate mask; do NOT bleed one finish into another.
- If a requested surface or appliance is not clearly visible in the source photo, do NOT invent new geometry or objects to satisfy the request. Leave that target unchanged instead of hallucinating additions.
- Different rooms can have different flooring. Keep bathroom tile in bathroom zones only.
- Do NOT bleed one flooring material across doorway boundaries into a room that should keep a different selected material.
- Do NOT add, remove, or move any object except in-place replacement of explicitly selected appliances. Keep exact counts of cabinets, drawer fronts, fixtures, and hardware.
- In doorway or multi-room views, keep edits inside the explicitly targeted visible zone and do NOT propagate flooring/fixtures into adjacent rooms.
- Never add televisions, media walls, built-ins, or extra cabinetry unless that exact item is explicitly selected in the list above.
- Do NOT invent new cabinet seams/panels, remove panel grooves, or simplify existing door geometry.
- Preserve all structural details: cabinet door panel style, countertop edges, trim profiles.
- If an edit is difficult, under-edit the finish rather than changing layout, geometry, or object position.
- Keep the exact camera angle, perspective, lighting, and room layout.
- Photorealistic result with accurate shadows and reflections.
`

const applianceRules = `- Appliance selections (dishwasher/refrigerator/range) may require model-shape changes. Replace ONLY the selected appliance in-place to match the swatch and descriptor.
- Keep each appliance in the same location, opening, perspective, and approximate footprint.
`

// orderedSet deduplicates while preserving first-seen order, so rule output
// stays deterministic.
type orderedSet struct {
	seen map[string]struct{}
	list []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.list = append(s.list, v)
}

func (s *orderedSet) values() []string {
	return s.list
}
