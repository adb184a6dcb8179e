package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/killallgit/vivu/pkg/logger"
)

// HealthStatus represents the health status of Ollama service
type HealthStatus struct {
	Available bool
	Version   string
	Error     error
	Models    []Model
}

// CheckHealth reports whether the server answers and which models it has.
// Connection problems are reported in the status, not as an error.
func (c *Client) CheckHealth(ctx context.Context) *HealthStatus {
	log := logger.WithComponent("ollama_health")
	log.Debug("Checking Ollama health", "base_url", c.baseURL)

	version, err := c.Version(ctx)
	if err != nil {
		log.Error("Failed to connect to Ollama", "error", err)
		return &HealthStatus{
			Available: false,
			Error:     fmt.Errorf("cannot connect to Ollama at %s: %w", c.baseURL, err),
		}
	}

	tagsResp, err := c.Tags(ctx)
	if err != nil {
		log.Error("Failed to get model list", "error", err)
		return &HealthStatus{
			Available: true, // Ollama is running but we couldn't get models
			Version:   version,
			Error:     fmt.Errorf("failed to get model list: %w", err),
			Models:    []Model{},
		}
	}

	log.Debug("Ollama health check successful", "version", version, "model_count", len(tagsResp.Models))
	return &HealthStatus{
		Available: true,
		Version:   version,
		Models:    tagsResp.Models,
	}
}

// CheckModel checks if a specific model is pulled
func (c *Client) CheckModel(ctx context.Context, modelName string) (bool, error) {
	health := c.CheckHealth(ctx)
	if health.Error != nil {
		return false, health.Error
	}

	for _, model := range health.Models {
		if model.Name == modelName || model.Model == modelName {
			return true, nil
		}
	}
	return false, nil
}

// CheckModelWithTimeout checks if a model is available with a specific timeout
func (c *Client) CheckModelWithTimeout(modelName string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.CheckModel(ctx, modelName)
}
