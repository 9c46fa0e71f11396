package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/af-corp/pulseboard/internal/registry"
	"github.com/af-corp/pulseboard/internal/types"
)

// gitlabWorkItem covers issues and merge requests; both carry an iid
// scoped to the project. Merge requests use GitLab's "!iid" numbering,
// issues use "#iid".
type gitlabWorkItem struct {
	IID       int       `json:"iid"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	WebURL    string    `json:"web_url"`
	Assignee  *struct {
		Username string `json:"username"`
	} `json:"assignee"`
}

type gitlabPipeline struct {
	ID        int       `json:"id"`
	Status    string    `json:"status"`
	Ref       string    `json:"ref"`
	CreatedAt time.Time `json:"created_at"`
	WebURL    string    `json:"web_url"`
}

func normalizeGitLab(endpoint string, kind types.ItemType, payload []byte) ([]types.UnifiedItem, error) {
	if endpoint == registry.EndpointPipelines {
		return normalizeGitLabPipelines(payload)
	}

	var native []gitlabWorkItem
	if err := json.Unmarshal(payload, &native); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}

	prefix := "#"
	if kind == types.ItemMergeRequest {
		prefix = "!"
	}

	items := make([]types.UnifiedItem, 0, len(native))
	for _, n := range native {
		assignee := DefaultAssignee
		if n.Assignee != nil {
			assignee = n.Assignee.Username
		}
		items = append(items, types.UnifiedItem{
			ID:         fmt.Sprintf("%s%d", prefix, n.IID),
			Title:      n.Title,
			Status:     orDefault(n.State, DefaultStatus),
			Created:    n.CreatedAt,
			URL:        n.WebURL,
			Type:       kind,
			SourceTool: types.ProviderGitLab,
			Assignee:   assignee,
		})
	}
	return items, nil
}

// normalizeGitLabPipelines maps pipeline runs. Pipelines have no title of
// their own; the ref they ran against stands in.
func normalizeGitLabPipelines(payload []byte) ([]types.UnifiedItem, error) {
	var native []gitlabPipeline
	if err := json.Unmarshal(payload, &native); err != nil {
		return nil, fmt.Errorf("parse pipelines payload: %w", err)
	}

	items := make([]types.UnifiedItem, 0, len(native))
	for _, n := range native {
		items = append(items, types.UnifiedItem{
			ID:         fmt.Sprintf("#%d", n.ID),
			Title:      n.Ref,
			Status:     orDefault(n.Status, DefaultStatus),
			Created:    n.CreatedAt,
			URL:        n.WebURL,
			Type:       types.ItemPipeline,
			SourceTool: types.ProviderGitLab,
			Assignee:   DefaultAssignee,
		})
	}
	return items, nil
}
