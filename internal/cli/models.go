// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/disam-ia/disamia/internal/ollama"
)

// modelsResult is the --json payload of `disamia models`.
type modelsResult struct {
	URL      string             `json:"url"`
	Selected string             `json:"selected,omitempty"`
	Models   []ollama.ModelInfo `json:"models"`
}

func newModelsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "models",
		Aliases: []string{"list-models"},
		Short:   "List the models installed in Ollama",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				models, err := a.client.ListModels(cmd.Context())
				if err != nil {
					return describe(err)
				}

				selected, _ := a.selectModel(cmd.Context())
				res := modelsResult{URL: a.client.BaseURL(), Selected: selected, Models: models}

				return writeResult(cmd, opts, res, func(w io.Writer) {
					if len(models) == 0 {
						fmt.Fprintln(w, WarningStyle.Render("No models installed.")+" Run 'ollama pull <model>'.")
						return
					}
					rows := make([][]string, 0, len(models))
					for _, m := range models {
						marker := " "
						if m.Name == selected {
							marker = "*"
						}
						rows = append(rows, []string{
							marker,
							m.Name,
							m.Details.ParameterSize,
							m.FormatSize(),
							humanize.Time(m.ModifiedAt),
						})
					}
					table(w, []string{" ", "NAME", "PARAMS", "SIZE", "MODIFIED"}, rows)
				})
			})
		},
	}
}
