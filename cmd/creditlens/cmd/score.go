package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var scoreCustomer string

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute and print a customer's credit assessment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.close()

		assessment, err := a.engine.CalculateScore(ctx, scoreCustomer)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(assessment)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreCustomer, "customer", "", "customer to score")
	_ = scoreCmd.MarkFlagRequired("customer")
	rootCmd.AddCommand(scoreCmd)
}
