package main

import (
	"fmt"
	"strings"

	"github.com/rappenlabs/rappen/internal/cli"
	"github.com/rappenlabs/rappen/internal/vendor"

	"github.com/spf13/cobra"
)

func suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <description>",
		Short: "Suggest vendors for a transaction description",
		Long: `Analyze a raw bank statement description and suggest matching vendors.

The description is normalized, broken into candidate merchant patterns,
and matched against all known vendors. If nothing matches well enough,
a name for a new vendor is proposed.

Example:
  rappen suggest "TWINT purchase, Lidl Zuerich 0800 Zuerich"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			description := strings.Join(args, " ")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			suggester := vendor.NewSuggester(store)
			analysis, err := suggester.Suggest(ctx, description)
			if err != nil {
				return fmt.Errorf("suggestion failed: %w", err)
			}

			cmd.Println(cli.RenderVendorAnalysis(analysis))
			return nil
		},
	}
}
