package cli

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/madetocreate/ai-shield/internal/cost"
)

var (
	costModel  string
	costInput  int
	costOutput int
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Estimate the price of a model call",
	Long: `Estimate the USD price of a call from the built-in price table.

  aishield cost --model gpt-4o --in 1200 --out 300`,
	RunE: costCommand,
}

func init() {
	costCmd.Flags().StringVar(&costModel, "model", "", "Model name, optionally provider-prefixed")
	costCmd.Flags().IntVar(&costInput, "in", 0, "Input tokens")
	costCmd.Flags().IntVar(&costOutput, "out", 0, "Output tokens")
	_ = costCmd.MarkFlagRequired("model")
	rootCmd.AddCommand(costCmd)
}

type costEstimate struct {
	Model        string          `json:"model"`
	MatchedAs    string          `json:"matched_as"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	InputPer1M   decimal.Decimal `json:"input_per_1m"`
	OutputPer1M  decimal.Decimal `json:"output_per_1m"`
	USD          decimal.Decimal `json:"usd"`
}

func costCommand(cmd *cobra.Command, args []string) error {
	prices := cost.DefaultPriceTable()
	price, matched := prices.Lookup(costModel)
	return printJSON(cmd.OutOrStdout(), costEstimate{
		Model:        costModel,
		MatchedAs:    matched,
		InputTokens:  costInput,
		OutputTokens: costOutput,
		InputPer1M:   price.Input,
		OutputPer1M:  price.Output,
		USD:          price.Cost(costInput, costOutput),
	})
}
