package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/killallgit/vivu/pkg/models"
)

// remoteModel accepts both spellings the backend has used for each field.
type remoteModel struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	DisplayName  string          `json:"displayName"`
	Size         json.RawMessage `json:"size"`
	Parameters   json.RawMessage `json:"parameters"`
	Modified     string          `json:"modified"`
	LastModified string          `json:"lastModified"`
}

// ListModels asks the backend which models it can stream from.
func (c *Client) ListModels(ctx context.Context) ([]models.Info, error) {
	var remote []remoteModel
	if err := c.do(ctx, http.MethodGet, "/api/ollama/models", nil, &remote); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	list := make([]models.Info, 0, len(remote))
	for _, m := range remote {
		if m.Name == "" {
			continue
		}
		size := rawText(m.Size)
		if size == "" {
			size = rawText(m.Parameters)
		}
		modified := m.Modified
		if modified == "" {
			modified = m.LastModified
		}
		list = append(list, models.Normalize(models.Info{
			ID:          m.ID,
			Name:        m.Name,
			DisplayName: m.DisplayName,
			Size:        size,
			Modified:    modified,
		}))
	}
	return list, nil
}

// rawText renders a JSON string or number as plain text.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
