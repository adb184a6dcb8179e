package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/killallgit/vivu/pkg/config"
	"github.com/killallgit/vivu/pkg/ollama"
	"github.com/killallgit/vivu/pkg/transport"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the configured backend is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		if cfg.Stream.Transport == transport.KindOllama {
			return ollamaStatus(cmd, os.Stdout, cfg)
		}

		fmt.Fprintf(os.Stdout, "Transport: http\nStream URL: %s\n", cfg.StreamURL())
		list, err := newAPIClient(cfg).ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("backend unreachable: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Backend: ok (%d models)\n", len(list))
		return nil
	},
}

func ollamaStatus(cmd *cobra.Command, w io.Writer, cfg *config.Config) error {
	client := ollama.NewClientWithTimeout(cfg.Ollama.URL, cfg.Ollama.Timeout)
	fmt.Fprintf(w, "Transport: ollama\nServer: %s\n", client.BaseURL())

	health := client.CheckHealth(cmd.Context())
	if !health.Available {
		return health.Error
	}
	fmt.Fprintf(w, "Version: %s\nModels: %d\n", health.Version, len(health.Models))

	model := cfg.DefaultModel()
	found, err := client.CheckModel(cmd.Context(), model)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(w, "Model %s: not pulled (run: ollama pull %s)\n", model, model)
		return nil
	}
	fmt.Fprintf(w, "Model %s: ok\n", model)
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
