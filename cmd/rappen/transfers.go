package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rappenlabs/rappen/internal/cli"
	"github.com/rappenlabs/rappen/internal/model"
	"github.com/rappenlabs/rappen/internal/transfer"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func transfersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfers",
		Short: "Detect and manage transfers between your own accounts",
		Long: `Find opposite-signed transaction pairs that look like money moved
between your accounts, review them, and confirm or reject the pairings.
Confirmed transfers are excluded from spending totals.`,
	}

	cmd.AddCommand(transfersDetectCmd())
	cmd.AddCommand(transfersSuggestCmd())
	cmd.AddCommand(transfersConfirmCmd())
	cmd.AddCommand(transfersListCmd())
	cmd.AddCommand(transfersDeleteCmd())

	return cmd
}

func newDetector(store transfer.Store) *transfer.Detector {
	return transfer.NewDetector(store, transfer.SettingsFromViper(viper.GetViper()))
}

func transfersDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Scan recent transactions for transfer pairs",
		Long: `Pair recent debits and credits across accounts and score each pairing.
Candidates above the auto-match threshold are confirmed automatically when
auto-matching is enabled; the rest are listed for review.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handler := cli.NewInterruptHandler(cmd.OutOrStdout())
			ctx := handler.HandleInterrupts(cmd.Context())

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			detector := newDetector(store)
			result, err := detector.Detect(ctx)
			if err != nil {
				if handler.WasInterrupted() && errors.Is(err, context.Canceled) {
					return nil
				}
				return fmt.Errorf("detection failed: %w", err)
			}

			cmd.Println(cli.RenderTransferCandidates(result.Candidates))
			if result.AutoMatched > 0 {
				cmd.Println(cli.FormatSuccess(fmt.Sprintf("%d transfer(s) auto-matched", result.AutoMatched)))
			}
			if result.ManualReviewNeeded > 0 {
				cmd.Println(cli.FormatInfo(fmt.Sprintf(
					"%d candidate(s) need review. Confirm with: rappen transfers confirm <from-txn> <to-txn>",
					result.ManualReviewNeeded)))
			}
			return nil
		},
	}
	return cmd
}

func transfersSuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest",
		Short: "List medium-confidence transfer candidates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			detector := newDetector(store)
			candidates, err := detector.Suggestions(ctx)
			if err != nil {
				return err
			}

			cmd.Println(cli.RenderTransferCandidates(candidates))
			return nil
		},
	}
}

func transfersConfirmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confirm <from-txn-id> <to-txn-id>",
		Short: "Confirm a detected candidate as a real transfer",
		Long: `Confirm that two transactions are the legs of one transfer. Both legs
are flagged and excluded from spending totals. With --learn, the pairing
is generalized into a pattern so similar transfers are recognized sooner.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			learn, _ := cmd.Flags().GetBool("learn")
			fromID, toID := args[0], args[1]

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			detector := newDetector(store)
			candidates, err := detector.DetectCandidates(ctx)
			if err != nil {
				return err
			}

			var match *model.TransferCandidate
			for i := range candidates {
				if candidates[i].From.ID == fromID && candidates[i].To.ID == toID {
					match = &candidates[i]
					break
				}
			}
			if match == nil {
				return fmt.Errorf("no candidate pairs transactions %s and %s; run 'rappen transfers detect' to see current candidates", fromID, toID)
			}

			created, err := detector.Confirm(ctx, match, learn)
			if err != nil {
				return fmt.Errorf("confirmation failed: %w", err)
			}

			msg := fmt.Sprintf("Transfer %s confirmed (%.2f)", created.ID, created.Amount)
			if learn {
				msg += " and pattern learned"
			}
			cmd.Println(cli.FormatSuccess(msg))
			return nil
		},
	}
	cmd.Flags().Bool("learn", false, "Learn a pattern from this confirmation")
	return cmd
}

func transfersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List confirmed transfers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			transfers, err := store.GetTransfers(ctx, limit)
			if err != nil {
				return err
			}

			if len(transfers) == 0 {
				cmd.Println(cli.FormatInfo("No confirmed transfers yet."))
				return nil
			}

			for _, tr := range transfers {
				line := fmt.Sprintf("%s  %s  %8.2f  %s",
					tr.ID, tr.Date.Format("2006-01-02"), tr.Amount, tr.Description)
				if tr.PatternID != "" {
					line += cli.SubtleStyle.Render("  [learned pattern]")
				}
				cmd.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of transfers to show (0 for all)")
	return cmd
}

func transfersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <transfer-id>",
		Short: "Undo a confirmed transfer",
		Long:  `Delete a transfer and revert both legs to regular transactions.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			detector := newDetector(store)
			if err := detector.Delete(ctx, args[0]); err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Transfer %s deleted; legs reverted", args[0])))
			return nil
		},
	}
}
