package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var proofCmd = &cobra.Command{
	Use:   "proof <pdf>",
	Short: "Write a highlighted copy of a PDF marking every occurrence of a quote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		quote, _ := cmd.Flags().GetString("quote")
		id, _ := cmd.Flags().GetString("id")

		locator, err := initLocator(ctx)
		if err != nil {
			return err
		}
		out, err := locator.GenerateProof(ctx, args[0], quote, id)
		if err != nil {
			return eris.Wrap(err, "proof")
		}
		fmt.Fprintln(os.Stdout, out)
		return nil
	},
}

func init() {
	proofCmd.Flags().String("quote", "", "text to highlight")
	proofCmd.Flags().String("id", "manual", "artifact name prefix")
	rootCmd.AddCommand(proofCmd)
}
