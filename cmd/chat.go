package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spachava753/gai"
	"github.com/spf13/cobra"

	"github.com/yellowpay/payagent/internal/agent"
	"github.com/yellowpay/payagent/internal/confirm"
	"github.com/yellowpay/payagent/internal/invocation"
	"github.com/yellowpay/payagent/internal/render"
	"github.com/yellowpay/payagent/internal/session"
	"github.com/yellowpay/payagent/internal/storage"
	"github.com/yellowpay/payagent/internal/tools"
)

// maxInputFileSize bounds inlined attachment size.
const maxInputFileSize = 1 * 1024 * 1024

var (
	chatContinueID string
	chatNew        bool
	chatInput      []string
)

// chatCmd talks to the assistant from the terminal. Confirmations are
// answered inline with a y/N prompt instead of the dashboard buttons.
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the assistant from the terminal",
	Long: `Start an interactive chat session, or send a single message when one
is given as an argument. By default the most recent conversation is
resumed; use --new to start fresh or --continue to pick a specific
conversation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var overrides configOverrides
		applyGenerationFlags(cmd.Flags(), &overrides)
		app, err := newApp(overrides)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		renderer := render.NewTerminalRenderer()
		gate := &confirm.TerminalGate{In: os.Stdin, Out: os.Stderr}
		exec := invocation.NewExecutor(app.registry, gate)
		loop, err := app.newLoop(exec, chatHooks(renderer))
		if err != nil {
			return err
		}

		sess, err := openChatSession(ctx, app, loop)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			message, err := withAttachments(args[0], chatInput)
			if err != nil {
				return err
			}
			return sendTurn(ctx, sess, app, message)
		}
		return interactiveChat(ctx, sess, app)
	},
}

// chatHooks prints assistant text and tool cards as markdown.
func chatHooks(renderer render.Renderer) agent.Hooks {
	printMarkdown := func(md string) {
		out, err := renderer.Render(md)
		if err != nil {
			out = md
		}
		fmt.Println(out)
	}
	return agent.Hooks{
		AssistantMessage: func(msg gai.Message) {
			for _, block := range msg.Blocks {
				if block.BlockType == gai.Content && block.ModalityType == gai.Text {
					printMarkdown(block.Content.String())
				}
			}
		},
		// No declared hook: the confirmation prompt comes from the
		// terminal gate, and working spinners add nothing on a
		// scrollback terminal.
		InvocationSettled: func(kind tools.Kind, snap invocation.Snapshot) {
			card := render.Build(kind, snap)
			if card.Type == render.CardAnswered {
				return
			}
			printMarkdown(card.Markdown())
		},
	}
}

func openChatSession(ctx context.Context, app *app, loop session.Generator) (*session.Session, error) {
	if chatNew {
		return session.New(ctx, app.store, loop, app.cfg.Model)
	}
	if chatContinueID != "" {
		sess, err := session.Load(ctx, app.store, loop, chatContinueID)
		if err != nil {
			return nil, fmt.Errorf("resuming conversation %s: %w", chatContinueID, err)
		}
		return sess, nil
	}
	latest, err := app.store.LatestConversation(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return session.New(ctx, app.store, loop, app.cfg.Model)
		}
		return nil, err
	}
	return session.Load(ctx, app.store, loop, latest.ID)
}

func sendTurn(ctx context.Context, sess *session.Session, app *app, message string) error {
	_, err := sess.Send(ctx, message, func(gai.Dialog) *gai.GenOpts {
		return app.cfg.Generation.ToGenOpts()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		var maxSteps *agent.MaxToolStepsError
		if errors.As(err, &maxSteps) {
			fmt.Fprintln(os.Stderr, maxSteps.Error())
			return nil
		}
		return fmt.Errorf("turn failed: %w", err)
	}
	return nil
}

func interactiveChat(ctx context.Context, sess *session.Session, app *app) error {
	fmt.Fprintf(os.Stderr, "Conversation %s (model %s). Empty line or Ctrl-D to exit.\n",
		sess.Conversation().ID, app.cfg.Model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		if err := sendTurn(ctx, sess, app, line); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

// withAttachments inlines text attachments beneath the message. Only
// text files are accepted; payroll CSVs and invoices are the expected
// use.
func withAttachments(message string, paths []string) (string, error) {
	if len(paths) == 0 {
		return message, nil
	}
	var sb strings.Builder
	sb.WriteString(message)
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading input file %s: %w", path, err)
		}
		if len(content) > maxInputFileSize {
			return "", fmt.Errorf("input file %s exceeds maximum size limit (1MB)", path)
		}
		mime := mimetype.Detect(content)
		if !strings.HasPrefix(mime.String(), "text/") {
			return "", fmt.Errorf("input file %s is %s, only text files can be attached", path, mime)
		}
		fmt.Fprintf(&sb, "\n\n--- %s ---\n%s", path, content)
	}
	return sb.String(), nil
}

func init() {
	addGenerationFlags(chatCmd.Flags())
	chatCmd.Flags().StringVarP(&chatContinueID, "continue", "c", "", "Continue from a specific conversation ID")
	chatCmd.Flags().BoolVarP(&chatNew, "new", "n", false, "Start a new conversation instead of continuing from the last one")
	chatCmd.Flags().StringSliceVarP(&chatInput, "input", "i", []string{}, "Attach text files to the message. Multiple files can be provided.")
	rootCmd.AddCommand(chatCmd)
}
