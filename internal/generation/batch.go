package generation

import (
	"roomviz/internal/catalog"
	"roomviz/internal/domain"
)

// maxReferenceImages is the provider's attachment ceiling of 14 images minus
// the carried room photo.
const maxReferenceImages = 13

// PlanBatches partitions the scoped selections into ordered batches whose
// swatch-bearing entries fit the reference-image ceiling. Text-only entries
// ride along with the first batch only. Every selection key lands in exactly
// one batch; an empty selection set still yields one (empty) pass-through
// batch.
func PlanBatches(selections domain.SelectionSet, lookup catalog.OptionLookup, spatialHints map[string]string) []domain.Batch {
	var swatchBearing, textOnly []domain.BatchEntry
	for _, subID := range selections.SortedKeys() {
		entry := resolveEntry(subID, selections[subID], lookup)
		entry.SpatialHint = spatialHints[subID]
		if entry.SwatchPath != "" {
			swatchBearing = append(swatchBearing, entry)
		} else {
			textOnly = append(textOnly, entry)
		}
	}

	if len(swatchBearing) <= maxReferenceImages {
		entries := append(append([]domain.BatchEntry{}, swatchBearing...), textOnly...)
		return []domain.Batch{{Entries: entries}}
	}

	var batches []domain.Batch
	for i := 0; i < len(swatchBearing); i += maxReferenceImages {
		end := i + maxReferenceImages
		if end > len(swatchBearing) {
			end = len(swatchBearing)
		}
		entries := append([]domain.BatchEntry{}, swatchBearing[i:end]...)
		if i == 0 {
			entries = append(entries, textOnly...)
		}
		batches = append(batches, domain.Batch{Entries: entries})
	}
	return batches
}

// resolveEntry joins one selection with its catalog record. Unknown
// selections degrade to a bare text entry; validation upstream normally
// rejects them before planning.
func resolveEntry(subID, optID string, lookup catalog.OptionLookup) domain.BatchEntry {
	entry := domain.BatchEntry{
		SubcategoryID:   subID,
		OptionID:        optID,
		SubcategoryName: subID,
		OptionName:      optID,
	}
	rec, ok := lookup.Get(subID, optID)
	if !ok {
		return entry
	}
	entry.SubcategoryName = rec.SubcategoryName
	entry.OptionName = rec.OptionName
	entry.Descriptor = rec.Descriptor
	entry.SwatchPath = rec.SwatchPath
	entry.IsAppliance = rec.IsAppliance
	entry.Rules = rec.Rules
	return entry
}
