package models

import (
	"context"
	"fmt"
	"time"

	"github.com/killallgit/vivu/pkg/logger"
	"github.com/killallgit/vivu/pkg/ollama"
)

// OllamaLister lists the models pulled on an Ollama server. It is the model
// source when chat streams go straight to Ollama instead of the backend.
type OllamaLister struct {
	client *ollama.Client
	logger *logger.ComponentLogger
}

func NewOllamaLister(client *ollama.Client) *OllamaLister {
	return &OllamaLister{
		client: client,
		logger: logger.WithComponent("ollama_model_lister"),
	}
}

func (p *OllamaLister) ListModels(ctx context.Context) ([]Info, error) {
	p.logger.Debug("Fetching model list from Ollama")
	tagsResp, err := p.client.Tags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get models from Ollama: %w", err)
	}

	list := make([]Info, 0, len(tagsResp.Models))
	for _, m := range tagsResp.Models {
		list = append(list, convertOllamaModel(m))
	}

	p.logger.Info("Retrieved models from Ollama", "count", len(list))
	return list, nil
}

// convertOllamaModel prefers the parameter count over the file size, the
// way the backend reports it.
func convertOllamaModel(m ollama.Model) Info {
	size := m.Details.ParameterSize
	if size == "" && m.Size > 0 {
		size = FormatModelSize(m.Size)
	}

	var modified string
	if !m.ModifiedAt.IsZero() {
		modified = m.ModifiedAt.Format(time.RFC3339)
	}

	return Normalize(Info{
		Name:     m.Name,
		Size:     size,
		Modified: modified,
	})
}
