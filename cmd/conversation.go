package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spachava753/gai"
	"github.com/spf13/cobra"

	"github.com/yellowpay/payagent/internal/config"
	"github.com/yellowpay/payagent/internal/render"
	"github.com/yellowpay/payagent/internal/storage"
)

// convoCmd represents the conversation management command
var convoCmd = &cobra.Command{
	Use:     "conversation",
	Short:   "Manage conversations",
	Long:    `Manage conversations stored in the database.`,
	Aliases: []string{"convo", "conv"},
}

func openStore() (*storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening conversation database: %w", err)
	}
	return store, nil
}

// listConvoCmd represents the conversation list command
var listConvoCmd = &cobra.Command{
	Use:     "list",
	Short:   "List all conversations",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		conversations, err := store.ListConversations(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		if len(conversations) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tMESSAGES\tTITLE")
		for _, conv := range conversations {
			title := conv.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				conv.ID, conv.CreatedAt.Format("2006-01-02 15:04"), conv.Messages, title)
		}
		return w.Flush()
	},
}

// printConvoCmd represents the conversation print command
var printConvoCmd = &cobra.Command{
	Use:     "print [conversationID]",
	Short:   "Print conversation history",
	Aliases: []string{"show", "view"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		id := args[0]
		if _, err := store.GetConversation(cmd.Context(), id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("conversation %s not found", id)
			}
			return err
		}
		dialog, err := store.GetDialog(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to load dialog: %w", err)
		}

		renderer := render.NewTerminalRenderer()
		for _, msg := range dialog {
			fmt.Printf("--- %s ---\n", roleLabel(msg.Role))
			for _, block := range msg.Blocks {
				text := block.Content.String()
				out, err := renderer.Render(text)
				if err != nil {
					out = text
				}
				fmt.Println(out)
			}
		}
		return nil
	},
}

// deleteConvoCmd represents the conversation delete command
var deleteConvoCmd = &cobra.Command{
	Use:     "delete [conversationID...]",
	Short:   "Delete one or more conversations",
	Aliases: []string{"rm", "remove"},
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		for _, id := range args {
			if err := store.DeleteConversation(cmd.Context(), id); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					fmt.Fprintf(os.Stderr, "Error: conversation %s not found\n", id)
					continue
				}
				fmt.Fprintf(os.Stderr, "Error deleting conversation %s: %v\n", id, err)
				continue
			}
			fmt.Printf("Deleted conversation %s\n", id)
		}
		return nil
	},
}

func roleLabel(role gai.Role) string {
	switch role {
	case gai.User:
		return "user"
	case gai.Assistant:
		return "assistant"
	case gai.ToolResult:
		return "tool"
	default:
		return "unknown"
	}
}

func init() {
	convoCmd.AddCommand(listConvoCmd)
	convoCmd.AddCommand(printConvoCmd)
	convoCmd.AddCommand(deleteConvoCmd)
	rootCmd.AddCommand(convoCmd)
}
