// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/disam-ia/disamia/internal/export"
	"github.com/disam-ia/disamia/internal/knowledge"
	"github.com/disam-ia/disamia/internal/util"
)

func newKnowledgeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "knowledge",
		Aliases: []string{"kb"},
		Short:   "Manage the knowledge base injected into every chat",
		Long: `The knowledge base is the list of DISAM entries rendered into the system
prompt of every conversation. Changes apply to the next message sent, in
this process and in any running chat or server that watches the store.`,
	}
	cmd.AddCommand(
		newKnowledgeListCommand(opts),
		newKnowledgeShowCommand(opts),
		newKnowledgeAddCommand(opts),
		newKnowledgeUpdateCommand(opts),
		newKnowledgeDeleteCommand(opts),
		newKnowledgeResetCommand(opts),
		newKnowledgeCategoriesCommand(opts),
		newKnowledgeContextCommand(opts),
		newKnowledgeImportCommand(opts),
		newKnowledgeExportCommand(opts),
		newKnowledgeLoadCommand(opts),
	)
	return cmd
}

// =============================================================================
// READ COMMANDS
// =============================================================================

func newKnowledgeListCommand(opts *rootOptions) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List knowledge entries",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				entries := a.knowledge.List()
				if category != "" {
					entries = a.knowledge.ByCategory(category)
				}
				return writeResult(cmd, opts, entries, func(w io.Writer) {
					if len(entries) == 0 {
						fmt.Fprintln(w, DimStyle.Render("No entries."))
						return
					}
					rows := make([][]string, 0, len(entries))
					for _, e := range entries {
						rows = append(rows, []string{
							e.ID,
							CategoryStyle.Render(e.Category),
							util.TruncateWidth(e.Title, 48),
							e.Updated().Format("2006-01-02"),
						})
					}
					table(w, []string{"ID", "CATEGORY", "TITLE", "UPDATED"}, rows)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only entries in this category")
	return cmd
}

func newKnowledgeShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				e, err := lookupEntry(a, args[0])
				if err != nil {
					return err
				}
				return writeResult(cmd, opts, e, func(w io.Writer) {
					fmt.Fprintln(w, TitleStyle.Render(e.Title))
					field(w, "ID", e.ID)
					field(w, "Category", e.Category)
					field(w, "Created", e.Created().Format("2006-01-02 15:04"))
					field(w, "Updated", e.Updated().Format("2006-01-02 15:04"))
					fmt.Fprintln(w)
					fmt.Fprintln(w, renderMarkdown(e.Content))
				})
			})
		},
	}
}

func newKnowledgeCategoriesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories in first-seen order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				cats := a.knowledge.Categories()
				return writeResult(cmd, opts, cats, func(w io.Writer) {
					for _, c := range cats {
						fmt.Fprintf(w, "%s %s\n", CategoryStyle.Render(c), DimStyle.Render(fmt.Sprintf("(%d)", len(a.knowledge.ByCategory(c)))))
					}
				})
			})
		},
	}
}

func newKnowledgeContextCommand(opts *rootOptions) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Print the knowledge block sent to the model",
		Long: `Context prints the knowledge block exactly as it is embedded in the system
prompt. With --prompt it prints the whole system prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				text := a.knowledge.RenderContext()
				if full {
					text = a.composer.SystemPrompt()
				}
				return writeResult(cmd, opts, map[string]string{"text": text}, func(w io.Writer) {
					fmt.Fprintln(w, text)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&full, "prompt", false, "Print the full system prompt")
	return cmd
}

// =============================================================================
// WRITE COMMANDS
// =============================================================================

func newKnowledgeAddCommand(opts *rootOptions) *cobra.Command {
	var title, content, category string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a knowledge entry",
		Example: `  disamia knowledge add --title "Vacunatorio" --category "Servicios" --content "Lunes a viernes 8:30-16:00"
  disamia knowledge add -t "Horarios" -c "Servicios" --content - < horarios.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := readContent(cmd, content)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				e, err := a.knowledge.Add(title, body, category)
				if err != nil {
					return err
				}
				return writeResult(cmd, opts, e, func(w io.Writer) {
					fmt.Fprintf(w, "%s Added %s %s\n", RenderStatus(true), e.ID, DimStyle.Render(e.Title))
				})
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Entry title")
	cmd.Flags().StringVar(&content, "content", "", `Entry content ("-" reads stdin)`)
	cmd.Flags().StringVarP(&category, "category", "c", "", "Entry category")
	return cmd
}

func newKnowledgeUpdateCommand(opts *rootOptions) *cobra.Command {
	var title, content, category string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a knowledge entry",
		Long:  `Update changes only the fields whose flags are given. Given fields must not be empty.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch knowledge.Patch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = knowledge.String(title)
			}
			if flags.Changed("content") {
				body, err := readContent(cmd, content)
				if err != nil {
					return err
				}
				patch.Content = knowledge.String(body)
			}
			if flags.Changed("category") {
				patch.Category = knowledge.String(category)
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to update: give --title, --content or --category")
			}

			return withApp(cmd, opts, func(a *app) error {
				if _, err := lookupEntry(a, args[0]); err != nil {
					return err
				}
				if err := a.knowledge.Update(args[0], patch); err != nil {
					return err
				}
				e, _ := a.knowledge.Get(args[0])
				return writeResult(cmd, opts, e, func(w io.Writer) {
					fmt.Fprintf(w, "%s Updated %s %s\n", RenderStatus(true), e.ID, DimStyle.Render(e.Title))
				})
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVar(&content, "content", "", `New content ("-" reads stdin)`)
	cmd.Flags().StringVarP(&category, "category", "c", "", "New category")
	return cmd
}

func newKnowledgeDeleteCommand(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a knowledge entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				e, err := lookupEntry(a, args[0])
				if err != nil {
					return err
				}
				if err := RequireConfirmation(yes, "delete entry "+e.ID, opts.json); err != nil {
					return err
				}
				if err := a.knowledge.Delete(e.ID); err != nil {
					return err
				}
				res := map[string]interface{}{"deleted": e.ID, "remaining": len(a.knowledge.List())}
				return writeResult(cmd, opts, res, func(w io.Writer) {
					fmt.Fprintf(w, "%s Deleted %s %s\n", RenderStatus(true), e.ID, DimStyle.Render(e.Title))
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newKnowledgeResetCommand(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default DISAM entries, discarding all edits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if err := RequireConfirmation(yes, "reset the knowledge base", opts.json); err != nil {
					return err
				}
				if err := a.knowledge.Reset(); err != nil {
					return err
				}
				entries := a.knowledge.List()
				return writeResult(cmd, opts, map[string]int{"entries": len(entries)}, func(w io.Writer) {
					fmt.Fprintf(w, "%s Knowledge base reset (%d entries)\n", RenderStatus(true), len(entries))
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// =============================================================================
// IMPORT / EXPORT
// =============================================================================

func newKnowledgeImportCommand(opts *rootOptions) *cobra.Command {
	var title, category string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add a .txt, .pdf or .docx document as one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				e, err := a.knowledge.ImportFile(args[0], title, category)
				if err != nil {
					return err
				}
				return writeResult(cmd, opts, e, func(w io.Writer) {
					fmt.Fprintf(w, "%s Imported %s as %s (%d characters)\n",
						RenderStatus(true), args[0], e.ID, len([]rune(e.Content)))
				})
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Entry title (default: file name)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Entry category (default: "+knowledge.DefaultImportCategory+")")
	return cmd
}

func newKnowledgeExportCommand(opts *rootOptions) *cobra.Command {
	var format, output string
	var toStdout bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the knowledge base as JSON, YAML or Markdown",
		Long: `Export writes the knowledge base to a timestamped file in --output, or to
stdout with --stdout. JSON and YAML exports can be loaded back with
'disamia knowledge load'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eopts := export.DefaultOptions()
			eopts.OutputDir = output
			exp, err := export.New(format, eopts)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				entries := a.knowledge.Snapshot()
				if toStdout {
					data, err := exp.ExportKnowledge(entries)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}

				path, err := export.KnowledgeToFile(entries, exp, eopts)
				if err != nil {
					return err
				}
				res := map[string]interface{}{"path": path, "entries": len(entries)}
				return writeResult(cmd, opts, res, func(w io.Writer) {
					fmt.Fprintf(w, "%s Exported %d entries to %s\n", RenderStatus(true), len(entries), path)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", export.FormatJSON, "Format: "+strings.Join(export.Formats(), ", "))
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Output directory")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Write to stdout instead of a file")
	return cmd
}

func newKnowledgeLoadCommand(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Replace the knowledge base with a JSON or YAML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := export.ReadKnowledgeFile(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				action := fmt.Sprintf("replace the knowledge base with %d entries", len(entries))
				if err := RequireConfirmation(yes, action, opts.json); err != nil {
					return err
				}
				if err := a.knowledge.Restore(entries); err != nil {
					return err
				}
				return writeResult(cmd, opts, map[string]int{"entries": len(entries)}, func(w io.Writer) {
					fmt.Fprintf(w, "%s Loaded %d entries from %s\n", RenderStatus(true), len(entries), args[0])
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func lookupEntry(a *app, id string) (knowledge.Entry, error) {
	e, ok := a.knowledge.Get(id)
	if !ok {
		return knowledge.Entry{}, fmt.Errorf("entry not found: %s", id)
	}
	return e, nil
}

// readContent returns value, or all of stdin without the final newline
// when value is "-".
func readContent(cmd *cobra.Command, value string) (string, error) {
	if value != "-" {
		return value, nil
	}
	in := cmd.InOrStdin()
	if in == os.Stdin && IsTTY() {
		return "", fmt.Errorf("--content - needs input on stdin")
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
