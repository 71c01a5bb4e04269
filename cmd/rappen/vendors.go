package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rappenlabs/rappen/internal/cli"
	"github.com/rappenlabs/rappen/internal/model"
	"github.com/rappenlabs/rappen/internal/vendor"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func vendorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendors",
		Short: "Manage inferred vendors and their learned patterns",
		Long:  `View vendors, teach the matcher new description patterns, and retire stale vendors.`,
	}

	cmd.AddCommand(vendorsListCmd())
	cmd.AddCommand(vendorsSearchCmd())
	cmd.AddCommand(vendorsLearnCmd())
	cmd.AddCommand(vendorsDeactivateCmd())
	cmd.AddCommand(vendorsScanCmd())

	return cmd
}

func vendorsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known vendors",
		Long:  `List vendors with their usage statistics and group membership.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			all, _ := cmd.Flags().GetBool("all")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			vendors, err := store.GetAllVendors(ctx)
			if err != nil {
				return err
			}

			if len(vendors) == 0 {
				cmd.Println(cli.FormatInfo("No vendors yet. Confirm a few suggestions first."))
				return nil
			}

			byID := make(map[string]model.Vendor, len(vendors))
			for _, v := range vendors {
				byID[v.ID] = v
			}

			for _, v := range vendors {
				if !all && !v.IsActive {
					continue
				}
				cmd.Println(formatVendorLine(v, byID))
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "Include deactivated vendors")
	return cmd
}

func formatVendorLine(v model.Vendor, byID map[string]model.Vendor) string {
	line := fmt.Sprintf("%-30s", v.Name)
	if parent, ok := byID[v.ParentID]; ok {
		line += cli.SubtleStyle.Render(fmt.Sprintf(" ⤷ %s", parent.Name))
	}
	line += cli.SubtleStyle.Render(fmt.Sprintf("  used %d×", v.UseCount))
	if !v.IsActive {
		line += cli.WarningStyle.Render("  [inactive]")
	}
	return line
}

func vendorsSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search vendors by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.ToLower(args[0])

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			vendors, err := store.GetAllVendors(ctx)
			if err != nil {
				return err
			}

			byID := make(map[string]model.Vendor, len(vendors))
			for _, v := range vendors {
				byID[v.ID] = v
			}

			found := 0
			for _, v := range vendors {
				if strings.Contains(strings.ToLower(v.Name), query) {
					cmd.Println(formatVendorLine(v, byID))
					found++
				}
			}
			if found == 0 {
				cmd.Println(cli.FormatInfo(fmt.Sprintf("No vendors matching %q", args[0])))
			}
			return nil
		},
	}
}

func vendorsLearnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn <vendor-id> <description>",
		Short: "Teach the matcher that a description belongs to a vendor",
		Long: `Associate a raw transaction description with a vendor. The description
is normalized and stored as a pattern; learning the same association again
reinforces the existing pattern instead of duplicating it.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			vendorID := args[0]
			description := strings.Join(args[1:], " ")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			learner := vendor.NewLearner(store)
			pattern, err := learner.Learn(ctx, description, vendorID, model.PatternExact)
			if err != nil {
				return fmt.Errorf("learning failed: %w", err)
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf(
				"Learned pattern %q for vendor %s (matched %d time(s))",
				pattern.Normalized, vendorID, pattern.TimesMatched)))
			return nil
		},
	}
}

func vendorsDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <vendor-id>",
		Short: "Retire a vendor and its patterns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeactivateVendor(ctx, args[0]); err != nil {
				return err
			}

			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Vendor %s deactivated", args[0])))
			return nil
		},
	}
}

func vendorsScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Suggest vendors for recent unvendored transactions",
		Long: `Run the vendor matcher over recent transactions that are not yet
assigned to a vendor and print the best suggestion for each.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			days, _ := cmd.Flags().GetInt("days")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			since := time.Now().AddDate(0, 0, -days)
			transactions, err := store.GetTransactionsSince(ctx, since)
			if err != nil {
				return err
			}

			var pending []model.Transaction
			for _, txn := range transactions {
				if txn.VendorID == "" && !txn.IsTransfer {
					pending = append(pending, txn)
				}
			}
			if len(pending) == 0 {
				cmd.Println(cli.FormatInfo("No unvendored transactions in the window."))
				return nil
			}

			bar := progressbar.NewOptions(len(pending),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Matching vendors...[reset]"),
			)

			suggester := vendor.NewSuggester(store)
			type scanHit struct {
				txn  model.Transaction
				best model.VendorSuggestion
			}
			var hits []scanHit
			unmatched := 0

			for _, txn := range pending {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				analysis, suggestErr := suggester.Suggest(ctx, txn.Description)
				if suggestErr != nil {
					return fmt.Errorf("analyzing %s: %w", txn.ID, suggestErr)
				}
				if len(analysis.Matches) > 0 {
					hits = append(hits, scanHit{txn: txn, best: analysis.Matches[0]})
				} else {
					unmatched++
				}
				_ = bar.Add(1)
			}
			cmd.Println()

			for _, hit := range hits {
				cmd.Printf("%s  %s %s\n",
					hit.txn.Date.Format("2006-01-02"),
					hit.txn.Description,
					cli.SuccessStyle.Render(fmt.Sprintf("→ %s (%.0f%%)", hit.best.VendorName, hit.best.Combined*100)))
			}
			cmd.Println(cli.FormatInfo(fmt.Sprintf("%d matched, %d without a suggestion", len(hits), unmatched)))
			return nil
		},
	}
	cmd.Flags().Int("days", 30, "How many days back to scan")
	return cmd
}
