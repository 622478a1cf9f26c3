package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yellowpay/payagent/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "payagent",
	Short: "Crypto payroll assistant",
	Long: `payagent is an AI assistant for a crypto payroll dashboard. It answers
balance and routing questions, explores DeFi protocols, and executes
transfers, swaps and conversions after explicit user confirmation.

Run "payagent serve" to expose the assistant over HTTP, or
"payagent chat" to talk to it from the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Printf("payagent version %s\n", version.Get())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Listen for cancellation
	// - in shells for user-initiated interruption SIGINT
	// - in system sent/container environments, SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// A missing .env file is fine, the environment may already be set.
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// addGenerationFlags registers the model tuning flags shared by the
// serve and chat commands. Flag values override environment config.
func addGenerationFlags(fs *pflag.FlagSet) {
	fs.StringP("model", "m", "", "Model to use, e.g. claude-sonnet-4-5 or gpt-5")
	fs.String("custom-url", "", "Custom base URL for the model provider API")
	fs.IntP("max-tokens", "x", 0, "Maximum number of tokens to generate")
	fs.Float64P("temperature", "t", 0, "Sampling temperature (0.0 - 2.0)")
	fs.StringP("system-prompt-file", "s", "", "Custom system prompt template file")
	fs.String("db-path", "", "Path to the sqlite conversation database")
}

// applyGenerationFlags folds set flags into cfg.
func applyGenerationFlags(fs *pflag.FlagSet, cfg *configOverrides) {
	if v, err := fs.GetString("model"); err == nil && v != "" {
		cfg.model = v
	}
	if v, err := fs.GetString("custom-url"); err == nil && v != "" {
		cfg.baseURL = v
	}
	if v, err := fs.GetInt("max-tokens"); err == nil && v > 0 {
		cfg.maxTokens = &v
	}
	if v, err := fs.GetFloat64("temperature"); err == nil && v > 0 {
		cfg.temperature = &v
	}
	if v, err := fs.GetString("system-prompt-file"); err == nil && v != "" {
		cfg.systemPromptPath = v
	}
	if v, err := fs.GetString("db-path"); err == nil && v != "" {
		cfg.dbPath = v
	}
}

type configOverrides struct {
	model            string
	baseURL          string
	maxTokens        *int
	temperature      *float64
	systemPromptPath string
	dbPath           string
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print the version number and exit")
}
