package models

import (
	"context"
	"strings"
)

// Info describes a model the user can pick.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Size        string `json:"size,omitempty"`
	Modified    string `json:"modified,omitempty"`
	// Reasoning is a guess from the name; see InferReasoning.
	Reasoning bool `json:"reasoning,omitempty"`
}

// Lister fetches the available models.
type Lister interface {
	ListModels(ctx context.Context) ([]Info, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context) ([]Info, error)

func (f ListerFunc) ListModels(ctx context.Context) ([]Info, error) {
	return f(ctx)
}

// Fallback is offered when no list could ever be fetched.
var Fallback = []Info{
	{ID: "gemma3:4b", Name: "gemma3:4b", DisplayName: "Gemma 3 (4B)", Size: "4B"},
	{ID: "llama3:8b", Name: "llama3:8b", DisplayName: "Llama 3 (8B)", Size: "8B"},
}

// DisplayName is the part of a model name before the tag.
func DisplayName(name string) string {
	base, _, _ := strings.Cut(name, ":")
	return base
}

// Normalize fills the derived fields of info from its name.
func Normalize(info Info) Info {
	info.Reasoning = info.Reasoning || InferReasoning(info.Name)
	if info.ID == "" {
		info.ID = info.Name
	}
	if info.DisplayName == "" {
		info.DisplayName = DisplayName(info.Name)
	}
	return info
}

// Find returns the model whose ID or name matches.
func Find(list []Info, name string) (Info, bool) {
	for _, m := range list {
		if m.ID == name || m.Name == name {
			return m, true
		}
	}
	return Info{}, false
}
