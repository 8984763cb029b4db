// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/disam-ia/disamia/internal/export"
	"github.com/disam-ia/disamia/internal/ollama"
	"github.com/disam-ia/disamia/internal/storage"
	"github.com/disam-ia/disamia/internal/util"
)

func newConversationsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "history"},
		Short:   "Manage saved conversations",
		Long: `Saved conversations are the chats kept by 'disamia chat', the full-screen
chat and the server. Ids may be shortened to any unique prefix, with or
without the conv_ prefix.`,
	}
	cmd.AddCommand(
		newConversationsListCommand(opts),
		newConversationsShowCommand(opts),
		newConversationsExportCommand(opts),
		newConversationsDeleteCommand(opts),
		newConversationsClearCommand(opts),
	)
	return cmd
}

func newConversationsListCommand(opts *rootOptions) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				convs := a.conversations.List()
				if search != "" {
					convs = a.conversations.Search(search)
				}
				return writeResult(cmd, opts, convs, func(w io.Writer) {
					if len(convs) == 0 {
						fmt.Fprintln(w, DimStyle.Render("No conversations."))
						return
					}
					rows := make([][]string, 0, len(convs))
					for _, c := range convs {
						rows = append(rows, []string{
							shortConversationID(c.ID),
							c.Updated().Format("2006-01-02 15:04"),
							fmt.Sprintf("%d", len(c.Messages)),
							util.TruncateWidth(c.Title, 50),
						})
					}
					table(w, []string{"ID", "UPDATED", "MSGS", "TITLE"}, rows)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only conversations whose title or messages contain this text")
	return cmd
}

func newConversationsShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				conv, err := getConversation(a.conversations, args[0])
				if err != nil {
					return err
				}
				return writeResult(cmd, opts, conv, func(w io.Writer) {
					fmt.Fprintln(w, TitleStyle.Render(conv.Title))
					field(w, "ID", conv.ID)
					field(w, "Created", conv.Created().Format("2006-01-02 15:04"))
					field(w, "Updated", conv.Updated().Format("2006-01-02 15:04"))
					for _, m := range conv.Messages {
						fmt.Fprintln(w)
						if m.Role == ollama.RoleUser {
							fmt.Fprintln(w, PromptStyle.Render("Tú"))
							fmt.Fprintln(w, m.Content)
						} else {
							fmt.Fprintln(w, SuccessStyle.Render("DISAM IA"))
							fmt.Fprintln(w, renderMarkdown(m.Content))
						}
					}
				})
			})
		},
	}
}

func newConversationsExportCommand(opts *rootOptions) *cobra.Command {
	var format, output string
	var toStdout bool
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a conversation as JSON, YAML or Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eopts := export.DefaultOptions()
			eopts.OutputDir = output
			exp, err := export.New(format, eopts)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(a *app) error {
				conv, err := getConversation(a.conversations, args[0])
				if err != nil {
					return err
				}
				if toStdout {
					data, err := exp.ExportConversation(&conv)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				path, err := export.ConversationToFile(&conv, exp, eopts)
				if err != nil {
					return err
				}
				return writeResult(cmd, opts, map[string]string{"id": conv.ID, "path": path}, func(w io.Writer) {
					fmt.Fprintf(w, "%s Exported %s to %s\n", RenderStatus(true), shortConversationID(conv.ID), path)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", export.FormatMarkdown, "Format: "+strings.Join(export.Formats(), ", "))
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Output directory")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Write to stdout instead of a file")
	return cmd
}

func newConversationsDeleteCommand(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				conv, err := getConversation(a.conversations, args[0])
				if err != nil {
					return err
				}
				if err := RequireConfirmation(yes, fmt.Sprintf("delete conversation %q", conv.Title), opts.json); err != nil {
					return err
				}
				if err := a.conversations.Delete(conv.ID); err != nil {
					return err
				}
				return writeResult(cmd, opts, map[string]string{"deleted": conv.ID}, func(w io.Writer) {
					fmt.Fprintf(w, "%s Deleted %s\n", RenderStatus(true), shortConversationID(conv.ID))
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newConversationsClearCommand(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all saved conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				n := len(a.conversations.List())
				if err := RequireConfirmation(yes, fmt.Sprintf("delete all %d conversations", n), opts.json); err != nil {
					return err
				}
				if err := a.conversations.Clear(); err != nil {
					return err
				}
				return writeResult(cmd, opts, map[string]int{"deleted": n}, func(w io.Writer) {
					fmt.Fprintf(w, "%s Deleted %d conversations\n", RenderStatus(true), n)
				})
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// =============================================================================
// ID HELPERS
// =============================================================================

const conversationPrefix = "conv_"

// shortConversationID is the id shown in tables; every command accepts it.
func shortConversationID(id string) string {
	return util.TruncateRunes(strings.TrimPrefix(id, conversationPrefix), 8)
}

// resolveConversation expands a unique id prefix to the full id.
func resolveConversation(store *storage.ConversationStore, arg string) (string, error) {
	var matches []string
	for _, c := range store.List() {
		if c.ID == arg {
			return arg, nil
		}
		if strings.HasPrefix(c.ID, arg) || strings.HasPrefix(c.ID, conversationPrefix+arg) {
			matches = append(matches, c.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("conversation not found: %s", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous conversation id %q matches %d conversations", arg, len(matches))
	}
}

func getConversation(store *storage.ConversationStore, arg string) (storage.Conversation, error) {
	id, err := resolveConversation(store, arg)
	if err != nil {
		return storage.Conversation{}, err
	}
	return store.Get(id)
}
