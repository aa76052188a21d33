package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/chrissnell/welltie/internal/align"
	"github.com/chrissnell/welltie/internal/anomaly"
	"github.com/chrissnell/welltie/internal/app"
	"github.com/chrissnell/welltie/internal/log"
	"github.com/spf13/cobra"
)

var (
	scanThreshold float64
	scanSensitive bool
	scanOffset    string
	scanAuditAt   float64
	scanAuditWin  float64

	syncSave bool

	saveOffset string

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Segment the depth intervals where the two logs disagree",
		Long: `Joins the logs at the saved session offset (or --offset) and reports every
run of rows whose discordance exceeds the threshold. With --audit-window a
local variance audit is run around --audit-center as well.`,
		RunE: runScan,
	}

	syncCmd = &cobra.Command{
		Use:     "sync",
		Aliases: []string{"tie"},
		Short:   "Search for the depth offset that best aligns the logs",
		RunE:    runSync,
	}

	saveCmd = &cobra.Command{
		Use:   "save",
		Short: "Save a depth offset as the session offset",
		RunE:  runSave,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the review session over HTTP",
		RunE:  runServe,
	}
)

func init() {
	scanCmd.Flags().Float64VarP(&scanThreshold, "threshold", "t", 0, "Discordance threshold (configured default when 0)")
	scanCmd.Flags().BoolVarP(&scanSensitive, "sensitive", "s", false, "Lower the threshold by 10%")
	scanCmd.Flags().StringVarP(&scanOffset, "offset", "o", "", "Depth offset in meters (overrides the saved session)")
	scanCmd.Flags().Float64Var(&scanAuditAt, "audit-center", 0, "Center depth of the variance audit")
	scanCmd.Flags().Float64Var(&scanAuditWin, "audit-window", 0, "Half-width of the variance audit window; 0 skips the audit")

	syncCmd.Flags().BoolVar(&syncSave, "save", false, "Save the offset found as the session offset")

	saveCmd.Flags().StringVarP(&saveOffset, "offset", "o", "0", "Depth offset in meters")
}

func runSync(cmd *cobra.Command, args []string) error {
	a, _, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	result, err := a.Engine.AutoAlign(ctx)
	if err != nil {
		return err
	}
	scores := a.Engine.Scores()

	if syncSave {
		if _, err := a.Engine.Save(ctx); err != nil {
			return err
		}
	}

	if jsonOutput {
		return writeJSON(os.Stdout, map[string]any{"result": result, "scores": scores})
	}
	fmt.Printf("offset       %+.4f m\n", result.Offset)
	fmt.Printf("correlation  %.4f (sigma %.2f)\n", scores.Correlation, scores.ScaledConcordance)
	fmt.Printf("paired rows  %d of %d\n", scores.PairedRows, scores.TotalRows)
	fmt.Printf("drift risk   %.2f\n", scores.DriftRisk)
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	a, cfg, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := applyOffset(cmd.Context(), a, scanOffset); err != nil {
		return err
	}

	threshold := scanThreshold
	if !cmd.Flags().Changed("threshold") {
		threshold = cfg.Anomaly.Threshold
	}
	sensitive := scanSensitive || cfg.Anomaly.Sensitive

	found, err := a.Engine.Scan(threshold, sensitive)
	if err != nil {
		return err
	}

	var audit *anomaly.AuditReport
	if scanAuditWin > 0 {
		report, err := a.Engine.VarianceAudit(scanAuditAt, scanAuditWin)
		if err != nil {
			return err
		}
		audit = &report
	}

	if jsonOutput {
		return writeJSON(os.Stdout, map[string]any{
			"offset":    a.Engine.Offsets().Stable(),
			"scores":    a.Engine.Scores(),
			"anomalies": found,
			"audit":     audit,
		})
	}

	fmt.Printf("offset %+.4f m, threshold %.2f (effective %.2f)\n",
		a.Engine.Offsets().Stable(), threshold, anomaly.EffectiveThreshold(threshold, sensitive))
	printAnomalies(os.Stdout, found)
	if audit != nil {
		fmt.Printf("\nvariance audit %.2f±%.2f m: %d rows, residual mean %.3f, stddev %.3f\n",
			audit.Center, audit.Window, audit.Rows, audit.Mean, audit.StdDev)
		printAnomalies(os.Stdout, audit.Anomalies)
	}
	return nil
}

func runSave(cmd *cobra.Command, args []string) error {
	a, _, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	offset := a.Engine.Offsets().Commit(align.ParseOffset(saveOffset, a.Engine.Config().OffsetLimit))
	at, err := a.Engine.Save(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("saved offset %+.4f m at %s\n", offset, at.Format("2006-01-02 15:04:05"))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, _, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if _, _, err := a.Engine.Restore(cmd.Context()); err != nil {
		log.Warnf("could not restore session: %v", err)
	}
	return a.Serve(cmd.Context())
}

// applyOffset commits an explicit offset, or restores the saved session
// when none is given
func applyOffset(ctx context.Context, a *app.App, explicit string) error {
	if explicit != "" {
		a.Engine.Offsets().Commit(align.ParseOffset(explicit, a.Engine.Config().OffsetLimit))
		return nil
	}
	_, _, err := a.Engine.Restore(ctx)
	return err
}

func printAnomalies(w io.Writer, found []anomaly.Anomaly) {
	if len(found) == 0 {
		fmt.Fprintln(w, "no anomalies")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tROWS\tAVG\tSEVERITY\tKIND")
	for _, a := range found {
		fmt.Fprintf(tw, "%.2f\t%.2f\t%d\t%.2f\t%s\t%s\n",
			a.StartDepth, a.EndDepth, a.Rows, a.AvgDiscordance, a.Severity, a.Kind)
	}
	tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
