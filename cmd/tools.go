package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yellowpay/payagent/internal/chainsim"
	"github.com/yellowpay/payagent/internal/tools"
	"github.com/yellowpay/payagent/internal/wallet"
)

// toolsCmd lists the tools the assistant can call.
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List available tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		sim, err := chainsim.New()
		if err != nil {
			return err
		}
		defer sim.Close()

		registry, err := tools.NewPaymentRegistry(&wallet.MockSigner{}, sim)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKIND\tCONFIRMATION\tDESCRIPTION")
		for _, def := range registry.Definitions() {
			needsConfirm := "-"
			if def.Mutating {
				needsConfirm = "required"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				def.Name(), def.Kind, needsConfirm, firstLine(def.Tool.Description))
		}
		return w.Flush()
	},
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
