package controllers

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/killallgit/vivu/pkg/logger"
	"github.com/killallgit/vivu/pkg/models"
)

type ModelsController struct {
	lister models.Lister
}

func NewModelsController(lister models.Lister) *ModelsController {
	return &ModelsController{
		lister: lister,
	}
}

func (mc *ModelsController) List(ctx context.Context) ([]models.Info, error) {
	log := logger.WithComponent("models_controller")
	log.Debug("Listing models")

	list, err := mc.lister.ListModels(ctx)
	if err != nil {
		log.Error("Listing models failed", "error", err)
		return nil, err
	}

	log.Debug("Listed models", "model_count", len(list))
	return list, nil
}

// ListModels writes the model table. The current model is marked with a
// star.
func (mc *ModelsController) ListModels(ctx context.Context, writer io.Writer, current string) error {
	list, err := mc.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	if len(list) == 0 {
		fmt.Fprintln(writer, "No models found")
		return nil
	}

	w := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDISPLAY\tSIZE\tMODIFIED\tREASONING")

	for _, m := range list {
		name := m.Name
		if name == current {
			name += " *"
		}
		reasoning := "no"
		if m.Reasoning {
			reasoning = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			name,
			m.DisplayName,
			orDash(m.Size),
			orDash(m.Modified),
			reasoning)
	}

	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
