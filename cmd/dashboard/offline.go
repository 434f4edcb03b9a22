package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"trade_desk/internal/backtest"
	"trade_desk/internal/rules"
	"trade_desk/internal/series"
	"trade_desk/internal/wire"
)

func strategyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Work with strategy drafts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Validate a strategy draft without submitting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			d, err := rules.LoadDraft(f)
			if err != nil {
				return err
			}
			res := rules.Validate(d)
			if res.OK {
				fmt.Fprintf(cmd.OutOrStdout(), "strategy %q is valid (%d rules)\n", d.Name, len(d.Rules))
				return nil
			}
			for _, e := range res.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", e.Field, e.Message)
			}
			return fmt.Errorf("strategy has %d errors", len(res.Errors))
		},
	})
	return cmd
}

func backtestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Work with backtest requests",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file.yaml>",
		Short: "Validate a backtest request and show the optimization grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			req, err := backtest.LoadRequest(f)
			if err != nil {
				return err
			}
			res := backtest.Validate(req)
			if !res.OK {
				for _, e := range res.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", e.Field, e.Message)
				}
				return fmt.Errorf("backtest request has %d errors", len(res.Errors))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backtest %s on %s %s..%s is valid\n", req.Strategy, req.Ticker, req.StartDate, req.EndDate)
			if req.Optimize {
				grid, err := backtest.Grid(req.Strategy)
				if err != nil {
					return err
				}
				out, err := sonic.ConfigStd.MarshalIndent(grid, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return nil
		},
	})
	return cmd
}

func chartCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "chart <history.json>",
		Short: "Build chart domain/ticks and metrics from a saved portfolio history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := series.ParsePeriod(period)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			points, err := wire.DecodeHistory(raw)
			if err != nil {
				return err
			}
			chart, err := series.Aggregate(points, p)
			if errors.Is(err, series.ErrNoData) {
				fmt.Fprintln(cmd.OutOrStdout(), "no data available")
				return nil
			}
			if err != nil {
				return err
			}
			out, err := sonic.ConfigStd.MarshalIndent(map[string]any{
				"domain":  chart.Domain,
				"ticks":   chart.Ticks,
				"points":  len(chart.Points),
				"metrics": series.Summarize(points),
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", string(series.Period1M), "1D|1W|1M|3M|1Y|ALL")
	return cmd
}
