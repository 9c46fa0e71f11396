// Package normalize maps provider-native payloads into the unified item
// schema. Normalization is pure: same payload in, same items out, sorted
// newest-first with ID as the tie-break.
package normalize

import (
	"fmt"

	"github.com/af-corp/pulseboard/internal/registry"
	"github.com/af-corp/pulseboard/internal/types"
)

// Defaults substituted when a native field is absent. Items are never
// dropped for missing fields.
const (
	DefaultStatus   = "unknown"
	DefaultAssignee = ""
)

// Normalize converts a provider-native response body into unified items.
// The descriptor supplies the item kind each endpoint yields. Dispatch is
// a closed switch over the provider set — an unknown provider is a bug
// upstream, not something to guess at.
func Normalize(desc *registry.Descriptor, endpoint string, payload []byte) ([]types.UnifiedItem, error) {
	kind := desc.ItemKind(endpoint)

	var items []types.UnifiedItem
	var err error
	switch desc.ID {
	case types.ProviderGitHub:
		items, err = normalizeGitHub(endpoint, kind, payload)
	case types.ProviderGitLab:
		items, err = normalizeGitLab(endpoint, kind, payload)
	case types.ProviderJira:
		items, err = normalizeJira(kind, payload)
	default:
		return nil, fmt.Errorf("no normalization rules for provider %q", desc.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("normalize %s %s: %w", desc.ID, endpoint, err)
	}

	types.SortItems(items)
	return items, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
