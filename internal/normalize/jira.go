package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/af-corp/pulseboard/internal/types"
)

// jiraCreatedFormat is Jira's REST timestamp layout (millis, numeric zone).
const jiraCreatedFormat = "2006-01-02T15:04:05.000-0700"

type jiraSearchResult struct {
	Issues []struct {
		Key    string `json:"key"`
		Self   string `json:"self"`
		Fields struct {
			Summary string `json:"summary"`
			Status  *struct {
				Name string `json:"name"`
			} `json:"status"`
			Created  string `json:"created"`
			Assignee *struct {
				DisplayName string `json:"displayName"`
			} `json:"assignee"`
		} `json:"fields"`
	} `json:"issues"`
}

// normalizeJira maps a JQL search result. Issue keys ("PROJ-123") pass
// through verbatim as the unified ID.
func normalizeJira(kind types.ItemType, payload []byte) ([]types.UnifiedItem, error) {
	var search jiraSearchResult
	if err := json.Unmarshal(payload, &search); err != nil {
		return nil, fmt.Errorf("parse search payload: %w", err)
	}

	items := make([]types.UnifiedItem, 0, len(search.Issues))
	for _, n := range search.Issues {
		status := DefaultStatus
		if n.Fields.Status != nil && n.Fields.Status.Name != "" {
			status = n.Fields.Status.Name
		}
		assignee := DefaultAssignee
		if n.Fields.Assignee != nil {
			assignee = n.Fields.Assignee.DisplayName
		}
		var created time.Time
		if n.Fields.Created != "" {
			t, err := time.Parse(jiraCreatedFormat, n.Fields.Created)
			if err != nil {
				// Some Jira deployments emit plain RFC 3339
				t, err = time.Parse(time.RFC3339, n.Fields.Created)
				if err != nil {
					return nil, fmt.Errorf("parse created time for %s: %w", n.Key, err)
				}
			}
			created = t
		}
		items = append(items, types.UnifiedItem{
			ID:         n.Key,
			Title:      n.Fields.Summary,
			Status:     status,
			Created:    created,
			URL:        n.Self,
			Type:       kind,
			SourceTool: types.ProviderJira,
			Assignee:   assignee,
		})
	}
	return items, nil
}
