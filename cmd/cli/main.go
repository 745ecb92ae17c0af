package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"stocktracker/cmd"
	"stocktracker/internal/config"
	"stocktracker/internal/repository"
	"stocktracker/internal/service"
	"stocktracker/internal/strategy"
	"stocktracker/internal/util"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	formatJson = "json"
	formatCsv  = "csv"
)

type resultRow struct {
	Strategy               string  `csv:"strategy"`
	Profit                 string  `csv:"profit"`
	GainPct                float64 `csv:"gain_pct"`
	RR                     float64 `csv:"rr"`
	MaxGainPct             float64 `csv:"max_gain_pct"`
	MaxDrawdownPct         float64 `csv:"max_drawdown_pct"`
	LevelsReached          int     `csv:"levels_reached"`
	StoppedOut             bool    `csv:"stopped_out"`
	ForcedClose            bool    `csv:"forced_close"`
	DownsideProtectionUsed bool    `csv:"downside_protection_used"`
	DaysHeld               int     `csv:"days_held"`
	BarsProcessed          int     `csv:"bars_processed"`
	SharesRemaining        string  `csv:"shares_remaining"`
}

func toRow(r strategy.Result) resultRow {
	return resultRow{
		Strategy:               r.StrategyName,
		Profit:                 r.Position.Profit.StringFixed(2),
		GainPct:                r.Position.GainPct,
		RR:                     r.Position.RR,
		MaxGainPct:             r.MaxGainPct,
		MaxDrawdownPct:         r.MaxDrawdownPct,
		LevelsReached:          r.LevelsReached,
		StoppedOut:             r.StoppedOut,
		ForcedClose:            r.ForcedClose,
		DownsideProtectionUsed: r.DownsideProtectionUsed,
		DaysHeld:               r.Position.DaysHeld,
		BarsProcessed:          r.BarsProcessed,
		SharesRemaining:        r.Position.NumberOfShares.String(),
	}
}

type strategyRow struct {
	Name           string `csv:"name"`
	NumberOfLevels int    `csv:"levels"`
	ProfitPoint    string `csv:"profit_point"`
	Percent        string `csv:"percent"`
	StopAdvance    string `csv:"stop_advance"`
	UseLowAsStop   bool   `csv:"use_low_as_stop"`
	Downside       bool   `csv:"downside_protection"`
	Description    string `csv:"description"`
}

func writeOutput(w io.Writer, format string, v any, rows any) error {
	switch format {
	case formatJson:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatCsv:
		return gocsv.Marshal(rows, w)
	}
	return fmt.Errorf("unknown format %q, expected json or csv", format)
}

func loadConfig() (*config.Config, error) {
	return config.Load(config.DefaultPath())
}

func strategiesCmd() *cobra.Command {
	var format string
	c := &cobra.Command{
		Use:   "strategies",
		Short: "List the built in exit strategies",
		RunE: func(c *cobra.Command, args []string) error {
			presets := strategy.Presets()
			rows := []strategyRow{}
			for _, p := range presets {
				rows = append(rows, strategyRow{
					Name:           p.Name,
					NumberOfLevels: p.NumberOfLevels,
					ProfitPoint:    string(p.ProfitPoint.Kind),
					Percent:        p.ProfitPoint.Percent.String(),
					StopAdvance:    string(p.StopAdvance),
					UseLowAsStop:   p.UseLowAsStop,
					Downside:       p.DownsideProtection != nil,
					Description:    p.Description,
				})
			}
			return writeOutput(c.OutOrStdout(), format, presets, &rows)
		},
	}
	c.Flags().StringVar(&format, "format", formatJson, "output format, json or csv")
	return c
}

type simulateFlags struct {
	ticker     string
	shares     string
	price      string
	stop       string
	date       string
	name       string
	all        bool
	closeAtEnd bool
	barsFile   string
	format     string
}

func (f simulateFlags) parse() (shares, price, stop decimal.Decimal, err error) {
	if shares, err = decimal.NewFromString(f.shares); err != nil {
		return shares, price, stop, fmt.Errorf("invalid --shares %q: %w", f.shares, err)
	}
	if price, err = decimal.NewFromString(f.price); err != nil {
		return shares, price, stop, fmt.Errorf("invalid --price %q: %w", f.price, err)
	}
	if stop, err = decimal.NewFromString(f.stop); err != nil {
		return shares, price, stop, fmt.Errorf("invalid --stop %q: %w", f.stop, err)
	}
	return shares, price, stop, nil
}

func simulateCmd() *cobra.Command {
	f := simulateFlags{}
	c := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a year of prices against an entry and report how each exit strategy would have done",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := context.Background()
			shares, price, stop, err := f.parse()
			if err != nil {
				return err
			}
			when, err := util.ParseDate(f.date)
			if err != nil {
				return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", f.date)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			var priceOverride repository.PriceRepository
			if f.barsFile != "" {
				priceOverride, err = repository.NewCsvPriceRepository(f.barsFile)
				if err != nil {
					return err
				}
			}
			deps, err := cmd.Wire(ctx, cfg, priceOverride)
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(deps)

			strategies := []strategy.Config{}
			if f.all {
				strategies = strategy.Presets()
			} else {
				preset, ok := strategy.ByName(f.name)
				if !ok {
					return fmt.Errorf("unknown strategy %q", f.name)
				}
				strategies = append(strategies, preset)
			}
			for i := range strategies {
				strategies[i].CloseAtEnd = f.closeAtEnd
			}

			out, err := deps.StrategyRunner.RunMany(ctx, service.RunManyInput{
				UserID:         uuid.Nil,
				Ticker:         f.ticker,
				NumberOfShares: shares,
				Price:          price,
				StopPrice:      &stop,
				When:           when,
				Strategies:     strategies,
			})
			if err != nil {
				return err
			}

			rows := []resultRow{}
			for _, r := range out.Results {
				rows = append(rows, toRow(r))
			}
			return writeOutput(c.OutOrStdout(), f.format, out, &rows)
		},
	}

	c.Flags().StringVar(&f.ticker, "ticker", "", "ticker to simulate")
	c.Flags().StringVar(&f.shares, "shares", "", "number of shares bought")
	c.Flags().StringVar(&f.price, "price", "", "entry price per share")
	c.Flags().StringVar(&f.stop, "stop", "", "initial stop price")
	c.Flags().StringVar(&f.date, "date", "", "entry date, YYYY-MM-DD")
	c.Flags().StringVar(&f.name, "strategy", "rr_3_advancing", "strategy to run")
	c.Flags().BoolVar(&f.all, "all", false, "run every built in strategy")
	c.Flags().BoolVar(&f.closeAtEnd, "close-at-end", false, "sell what is left at the last close")
	c.Flags().StringVar(&f.barsFile, "bars", "", "read daily bars from a csv file instead of the price provider")
	c.Flags().StringVar(&f.format, "format", formatJson, "output format, json or csv")
	for _, required := range []string{"ticker", "shares", "price", "stop", "date"} {
		_ = c.MarkFlagRequired(required)
	}
	return c
}

func monitorCmd() *cobra.Command {
	var (
		ids  string
		name string
	)
	c := &cobra.Command{
		Use:   "monitor",
		Short: "Check open positions against the latest quotes and raise alerts",
		RunE: func(c *cobra.Command, args []string) error {
			ctx := context.Background()
			positionIDs := []uuid.UUID{}
			for _, s := range strings.Split(ids, ",") {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				id, err := uuid.Parse(s)
				if err != nil {
					return fmt.Errorf("invalid position id %q: %w", s, err)
				}
				positionIDs = append(positionIDs, id)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// an in memory store starts empty on every run
			if !cfg.Postgres.Enabled() {
				return fmt.Errorf("monitor needs postgres configured, positions are not persisted without it")
			}
			deps, err := cmd.Wire(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(deps)

			if name == "" {
				name = cfg.Monitor.Strategy
			}
			preset, ok := strategy.ByName(name)
			if !ok {
				return fmt.Errorf("unknown strategy %q", name)
			}

			alerts, err := deps.MonitorService.Evaluate(ctx, positionIDs, preset)
			if alerts != nil {
				enc := json.NewEncoder(c.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(alerts); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}
	c.Flags().StringVar(&ids, "positions", "", "comma separated position ids")
	c.Flags().StringVar(&name, "strategy", "", "strategy whose levels are watched, defaults to monitor.strategy")
	_ = c.MarkFlagRequired("positions")
	return c
}

func serveCmd() *cobra.Command {
	var port int
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the http api",
		RunE: func(c *cobra.Command, args []string) error {
			deps, err := cmd.InitializeDependencies()
			if err != nil {
				return err
			}
			defer cmd.CloseDependencies(deps)

			if port == 0 {
				port = deps.Config.Server.Port
			}
			return deps.ApiHandler().StartApi(port)
		},
	}
	c.Flags().IntVar(&port, "port", 0, "port to listen on, defaults to server.port")
	return c
}

func main() {
	root := &cobra.Command{
		Use:          "stocktracker",
		Short:        "Track stock positions and test exit strategies against price history",
		SilenceUsage: true,
	}
	root.AddCommand(strategiesCmd(), simulateCmd(), monitorCmd(), serveCmd())

	if err := root.Execute(); err != nil {
		zap.S().Debugw("command failed", "error", err)
		os.Exit(1)
	}
}
