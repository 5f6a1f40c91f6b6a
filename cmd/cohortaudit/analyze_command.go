package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"cohortaudit/internal/api"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		clusters   int
		window     int
		alpha      float64
		lengthMode string
		maxCurves  int
		maxPoints  int
		baseline   string
		seed       uint64
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Cluster the batch and report the optimal audit policy per cohort",
		Long: "Discovers batch files under the configured notes directories, clusters the\n" +
			"response curves and prints per-cohort audit thresholds. Flags override the\n" +
			"[analysis] section of the configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			query := url.Values{}
			flags := cmd.Flags()
			setIf := func(name, key, value string) {
				if flags.Changed(name) {
					query.Set(key, value)
				}
			}
			setIf("clusters", "n_clusters", strconv.Itoa(clusters))
			setIf("smooth-window", "smooth_window", strconv.Itoa(window))
			setIf("alpha", "alpha", strconv.FormatFloat(alpha, 'g', -1, 64))
			setIf("length-mode", "length_mode", lengthMode)
			setIf("max-curves", "max_individual_curves", strconv.Itoa(maxCurves))
			setIf("max-points", "max_curve_points", strconv.Itoa(maxPoints))
			setIf("baseline", "baseline_method", baseline)
			setIf("seed", "seed", strconv.FormatUint(seed, 10))

			svc := api.NewService(cfg, logger)
			params, err := api.ApplyQuery(svc.Defaults(), query)
			if err != nil {
				return err
			}
			resp, err := svc.Analyze(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderAnalysis(resp, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&jsonOutput, "json", false, "Print the full response as JSON")
	flags.IntVarP(&clusters, "clusters", "k", 0, "Number of cohorts")
	flags.IntVar(&window, "smooth-window", 0, "Moving-average window over deltas")
	flags.Float64Var(&alpha, "alpha", 0, "Fraction of final cumulative gain that defines demand")
	flags.StringVar(&lengthMode, "length-mode", "", "Curve length reconciliation: truncate, pad or error")
	flags.IntVar(&maxCurves, "max-curves", 0, "Maximum sampled individual curves")
	flags.IntVar(&maxPoints, "max-points", 0, "Maximum points per returned curve")
	flags.StringVar(&baseline, "baseline", "", "Mean-threshold rounding: round, ceil or floor")
	flags.Uint64Var(&seed, "seed", 0, "Seed for clustering and curve sampling")
	return cmd
}
