package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/af-corp/pulseboard/internal/registry"
	"github.com/af-corp/pulseboard/internal/types"
)

// githubIssue covers both the issues list and the search results shape.
// Pull requests surface through the issues API with a pull_request stub.
type githubIssue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	HTMLURL   string    `json:"html_url"`
	Assignee  *struct {
		Login string `json:"login"`
	} `json:"assignee"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request"`
}

type githubSearchResult struct {
	Items []githubIssue `json:"items"`
}

// normalizeGitHub handles the issues array and the search envelope. Issue
// numbering keeps GitHub's native "#123" form.
func normalizeGitHub(endpoint string, kind types.ItemType, payload []byte) ([]types.UnifiedItem, error) {
	var native []githubIssue
	if endpoint == registry.EndpointPullRequests {
		var search githubSearchResult
		if err := json.Unmarshal(payload, &search); err != nil {
			return nil, fmt.Errorf("parse search payload: %w", err)
		}
		native = search.Items
	} else {
		if err := json.Unmarshal(payload, &native); err != nil {
			return nil, fmt.Errorf("parse issues payload: %w", err)
		}
	}

	items := make([]types.UnifiedItem, 0, len(native))
	for _, n := range native {
		itemKind := kind
		if n.PullRequest != nil {
			itemKind = types.ItemPullRequest
		}
		assignee := DefaultAssignee
		if n.Assignee != nil {
			assignee = n.Assignee.Login
		}
		items = append(items, types.UnifiedItem{
			ID:         fmt.Sprintf("#%d", n.Number),
			Title:      n.Title,
			Status:     orDefault(n.State, DefaultStatus),
			Created:    n.CreatedAt,
			URL:        n.HTMLURL,
			Type:       itemKind,
			SourceTool: types.ProviderGitHub,
			Assignee:   assignee,
		})
	}
	return items, nil
}
