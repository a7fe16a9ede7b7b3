package generation

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"roomviz/internal/catalog"
	"roomviz/internal/domain"
)

// cacheVersion is folded into every cache key. Bump it when prompt semantics
// materially change so old cached images are not reused.
const cacheVersion = "v15"

// Reserved marker keys for the non-selection inputs of the cache key. The
// underscore prefix keeps them out of the subcategory id namespace.
const (
	markerPhoto         = "_photo"
	markerModel         = "_model"
	markerCacheVersion  = "_cacheVersion"
	markerPromptPolicy  = "_promptPolicy"
	markerPromptContext = "_promptContext"
)

// KeyInputs is the full logical identity of one generation request.
type KeyInputs struct {
	Selections       domain.SelectionSet
	PhotoID          string
	Model            string
	PolicyKey        string
	ContextSignature string
}

// DeriveKey computes the deterministic cache key: all inputs merged into one
// key/value set, sorted, joined as key:value pairs, hashed, and truncated.
// Identical logical requests always produce the same key regardless of
// selection ordering.
func DeriveKey(in KeyInputs) string {
	merged := make(map[string]string, len(in.Selections)+5)
	for k, v := range in.Selections {
		merged[k] = v
	}
	merged[markerPhoto] = in.PhotoID
	merged[markerModel] = in.Model
	merged[markerCacheVersion] = cacheVersion
	merged[markerPromptPolicy] = in.PolicyKey
	merged[markerPromptContext] = in.ContextSignature
	return hashPairs(merged)
}

// Fingerprint hashes the selections alone, with no reserved markers, so it
// stays stable across cache-version bumps for analytics correlation.
func Fingerprint(selections domain.SelectionSet) string {
	return hashPairs(selections)
}

func hashPairs(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(pairs[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

// ContextSignature builds a deterministic digest input of every non-selection
// field that affects the generated prompt: scene text, photo baseline, spatial
// hints, and the generation rules attached to the current selections. Any
// change here must change the cache key even with identical selections.
func ContextSignature(cfg *catalog.PhotoConfig, selections domain.SelectionSet, lookup catalog.OptionLookup) string {
	if cfg == nil {
		return ""
	}

	hintKeys := make([]string, 0, len(cfg.SpatialHints))
	for k := range cfg.SpatialHints {
		hintKeys = append(hintKeys, k)
	}
	sort.Strings(hintKeys)
	hintParts := make([]string, 0, len(hintKeys))
	for _, k := range hintKeys {
		hintParts = append(hintParts, k+":"+cfg.SpatialHints[k])
	}

	// Subcategory-level and option-level rules are distinct signature parts:
	// moving a rule between the two levels changes the key even when the
	// merged rule text is identical.
	var ruleParts []string
	for _, subID := range selections.SortedKeys() {
		rec, ok := lookup.Get(subID, selections[subID])
		if !ok {
			continue
		}
		if len(rec.SubcategoryRules) > 0 {
			ruleParts = append(ruleParts, "s:"+subID+":"+strings.Join(rec.SubcategoryRules, ";"))
		}
		if len(rec.OptionRules) > 0 {
			ruleParts = append(ruleParts, "o:"+rec.OptionID+":"+strings.Join(rec.OptionRules, ";"))
		}
	}

	return strings.Join([]string{
		"scene:" + cfg.SceneDescription,
		"photoBaseline:" + cfg.PhotoBaseline,
		"photoSpatialHint:" + cfg.SpatialHint,
		"spatialHints:" + strings.Join(hintParts, "|"),
		"rules:" + strings.Join(ruleParts, "|"),
	}, "||")
}
