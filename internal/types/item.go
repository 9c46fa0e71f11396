package types

import (
	"sort"
	"time"
)

// ProviderID identifies one external work-tracking provider. The set is
// closed: lookups for unknown IDs fail at the registry, never deeper.
type ProviderID string

const (
	ProviderGitHub ProviderID = "github"
	ProviderGitLab ProviderID = "gitlab"
	ProviderJira   ProviderID = "jira"
)

// CredentialIdentity names whose quota an outbound call consumes — a
// specific token or app installation, not the portal session. Two sessions
// sharing one org token share one identity; personal tokens never do.
type CredentialIdentity string

// ItemType classifies a unified item.
type ItemType string

const (
	ItemIssue        ItemType = "issue"
	ItemPullRequest  ItemType = "pull-request"
	ItemMergeRequest ItemType = "merge-request"
	ItemPipeline     ItemType = "pipeline"
)

// UnifiedItem is the canonical representation all provider payloads are
// normalized into. Fields absent at the source carry documented defaults
// (Status "unknown", Assignee empty) rather than being dropped.
type UnifiedItem struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	Created    time.Time  `json:"created"`
	URL        string     `json:"url"`
	Type       ItemType   `json:"type"`
	SourceTool ProviderID `json:"source_tool"`
	Assignee   string     `json:"assignee,omitempty"`
}

// SortItems orders items newest-first; equal timestamps fall back to ID
// ascending so the output is deterministic for identical input.
func SortItems(items []UnifiedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Created.Equal(items[j].Created) {
			return items[i].Created.After(items[j].Created)
		}
		return items[i].ID < items[j].ID
	})
}
