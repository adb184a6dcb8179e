package cmd

import (
	"os"

	"github.com/killallgit/vivu/pkg/config"
	"github.com/killallgit/vivu/pkg/controllers"
	"github.com/killallgit/vivu/pkg/models"
	"github.com/killallgit/vivu/pkg/ollama"
	"github.com/killallgit/vivu/pkg/transport"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models",
	Long: `List the models the chat backend offers, or the models pulled into the
local Ollama server when the ollama transport is selected.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		controller := controllers.NewModelsController(modelLister(cfg))
		return controller.ListModels(cmd.Context(), os.Stdout, cfg.DefaultModel())
	},
}

// modelLister picks the model source for the configured transport. The
// result is cached and never fails.
func modelLister(cfg *config.Config) models.Lister {
	var source models.Lister
	if cfg.Stream.Transport == transport.KindOllama {
		source = models.NewOllamaLister(ollama.NewClientWithTimeout(cfg.Ollama.URL, cfg.Ollama.Timeout))
	} else {
		source = newAPIClient(cfg)
	}
	return models.NewCachedLister(source, models.WithTTL(cfg.Models.CacheTTL))
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
