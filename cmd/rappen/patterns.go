package main

import (
	"fmt"

	"github.com/rappenlabs/rappen/internal/cli"
	"github.com/rappenlabs/rappen/internal/model"
	"github.com/rappenlabs/rappen/internal/transfer"

	"github.com/spf13/cobra"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Manage learned transfer patterns",
		Long: `List, tune, and delete the patterns learned from confirmed transfers.
Patterns boost the confidence of recurring transfers and can auto-confirm
them once you trust them.`,
	}

	cmd.AddCommand(patternsListCmd())
	cmd.AddCommand(patternsEditCmd())
	cmd.AddCommand(patternsDeleteCmd())

	return cmd
}

func patternsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List learned transfer patterns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			manager := transfer.NewPatternManager(store)
			patterns, err := manager.List(ctx)
			if err != nil {
				return err
			}

			if len(patterns) == 0 {
				cmd.Println(cli.FormatInfo("No patterns learned yet. Confirm transfers with --learn."))
				return nil
			}

			for _, p := range patterns {
				line := fmt.Sprintf("%s  %-40s matched %d×, typical %.2f ±%.0f%%",
					p.ID, p.Name, p.TimesMatched, p.TypicalAmount, p.AmountTolerance*100)
				if p.AutoConfirm {
					line += cli.SuccessStyle.Render("  [auto-confirm]")
				}
				if !p.IsActive {
					line += cli.WarningStyle.Render("  [inactive]")
				}
				cmd.Println(line)
			}
			return nil
		},
	}
}

func patternsEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <pattern-id>",
		Short: "Adjust a pattern's settings",
		Long: `Change the adjustable settings of a learned pattern. Only flags you
pass are changed; everything else keeps its current value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var settings model.PatternSettings
			if cmd.Flags().Changed("auto-confirm") {
				v, _ := cmd.Flags().GetBool("auto-confirm")
				settings.AutoConfirm = &v
			}
			if cmd.Flags().Changed("confidence-threshold") {
				v, _ := cmd.Flags().GetFloat64("confidence-threshold")
				settings.ConfidenceThreshold = &v
			}
			if cmd.Flags().Changed("amount-tolerance") {
				v, _ := cmd.Flags().GetFloat64("amount-tolerance")
				settings.AmountTolerance = &v
			}
			if cmd.Flags().Changed("max-days") {
				v, _ := cmd.Flags().GetInt("max-days")
				settings.MaxDaysBetween = &v
			}
			if cmd.Flags().Changed("active") {
				v, _ := cmd.Flags().GetBool("active")
				settings.IsActive = &v
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			manager := transfer.NewPatternManager(store)
			updated, err := manager.UpdateSettings(ctx, args[0], settings)
			if err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Pattern %q updated", updated.Name)))
			return nil
		},
	}

	cmd.Flags().Bool("auto-confirm", false, "Auto-confirm transfers matching this pattern")
	cmd.Flags().Float64("confidence-threshold", 0, "Confidence required for this pattern to match")
	cmd.Flags().Float64("amount-tolerance", 0, "Relative amount tolerance (e.g. 0.05 for 5%)")
	cmd.Flags().Int("max-days", 0, "Maximum days between the two legs")
	cmd.Flags().Bool("active", true, "Whether the pattern participates in detection")

	return cmd
}

func patternsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <pattern-id>",
		Short: "Delete a learned pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			manager := transfer.NewPatternManager(store)
			if err := manager.Delete(ctx, args[0]); err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Pattern %s deleted", args[0])))
			return nil
		},
	}
}
