package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rcourtman/coachkit/pkg/entitlements"
)

var jsonOutput bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the demo catalog and demo users to the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.Seed(cmd.Context()); err != nil {
			return fmt.Errorf("seed store: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s\n", a.store.Path())
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <user-id> [feature...]",
	Short: "Show which features a user can use and from which source",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		userID := args[0]
		var features []entitlements.FeatureKey
		for _, f := range args[1:] {
			features = append(features, entitlements.FeatureKey(f))
		}
		if len(features) == 0 {
			if features, err = a.service.ResolveAll(ctx, userID); err != nil {
				return err
			}
		}

		records := make([]entitlements.Record, 0, len(features))
		for _, f := range features {
			rec, err := a.service.Resolve(ctx, userID, f)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), records)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FEATURE\tENABLED\tSOURCE\tREMAINING")
		for _, rec := range records {
			source, remaining := "-", "unlimited"
			if rec.Source != nil {
				source = string(*rec.Source)
			}
			if rec.RemainingUsage != nil {
				remaining = strconv.FormatInt(*rec.RemainingUsage, 10)
			}
			fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", rec.Feature, rec.Enabled, source, remaining)
		}
		return tw.Flush()
	},
}

var gateCmd = &cobra.Command{
	Use:   "gate <user-id> <feature>",
	Short: "Evaluate the feature gate a user would see",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		decision, err := a.service.Gate(cmd.Context(), args[0], entitlements.FeatureKey(args[1]))
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), decision)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n", args[1], decision.State)
		if decision.Message != "" {
			fmt.Fprintln(out, decision.Message)
		}
		if decision.ShowUpgrade && decision.UpgradeURL != "" {
			fmt.Fprintf(out, "Upgrade: %s\n", decision.UpgradeURL)
		}
		return nil
	},
}

var previewLossCmd = &cobra.Command{
	Use:   "preview-loss <user-id> <source>",
	Short: "List the features a user would lose if an access source were removed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := entitlements.ParseAccessSource(args[1])
		if err != nil {
			return err
		}
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		preview, err := a.service.PreviewLoss(cmd.Context(), args[0], source)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), preview)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Removing %s\n", preview.Removed)
		fmt.Fprintf(out, "  lose:   %v\n", preview.FeaturesToLose)
		fmt.Fprintf(out, "  retain: %v\n", preview.FeaturesRetained)
		return nil
	},
}

var alumniCmd = &cobra.Command{
	Use:   "alumni <user-id> <program-id>",
	Short: "Show a user's alumni access for a program",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := a.service.AlumniAccess(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), status)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "State: %s\n", status.State)
		fmt.Fprintf(out, "Access: %t (read-only %t)\n", status.HasAccess, status.ReadOnly)
		if status.InGracePeriod && status.GraceExpiresAt != nil {
			fmt.Fprintf(out, "Grace period ends %s (%d days, %s)\n",
				status.GraceExpiresAt.Format("2006-01-02"), status.DaysRemaining, status.Urgency)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{resolveCmd, gateCmd, previewLossCmd, alumniCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
