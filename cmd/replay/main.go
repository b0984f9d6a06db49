// Command replay checks a saved trader snapshot offline. It re-runs the noise
// filter over the stored history to confirm it reproduces the stored denoised
// chart, then replays the pattern analyzer tick by tick and prints every
// hollow and bump it would have seen.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"reversal-trading-bot/config"
	"reversal-trading-bot/internal/chart"
	"reversal-trading-bot/internal/database"
)

func main() {
	var (
		snapshotPath string
		smoothing    string
		minDiff      float64
	)
	flag.StringVar(&snapshotPath, "snapshot", "", "Path to a snapshot file (defaults to <snapshot_dir>/<symbol>.json)")
	flag.StringVar(&smoothing, "smoothing", "", "Override the configured smoothing mode")
	flag.Float64Var(&minDiff, "min-diff", -1, "Override the sampling filter threshold, in percent")
	flag.Parse()

	// config.Load also reads .env
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	opts := Options{
		Smoothing: cfg.ChartConfig.Smoothing,
		MinDiff:   cfg.ChartConfig.MinPriceDifferenceToApproveNewPoint,
		Patterns:  cfg.PatternsConfig,
	}
	if smoothing != "" {
		opts.Smoothing = chart.Smoothing(smoothing)
	}
	if minDiff >= 0 {
		opts.MinDiff = minDiff
	}
	if snapshotPath == "" {
		snapshotPath = database.NewFileSnapshotStore(cfg.StorageConfig.SnapshotDir).Path(cfg.MarketConfig.Symbol)
	}

	snap, err := database.ReadSnapshotFile(snapshotPath)
	if err != nil {
		fmt.Printf("❌ Failed to read snapshot %s: %v\n", snapshotPath, err)
		os.Exit(1)
	}

	report := Replay(snap, opts)
	printReport(snapshotPath, snap, report)
	if !report.Deterministic {
		os.Exit(2)
	}
}

func printReport(path string, snap *database.Snapshot, r *Report) {
	line := strings.Repeat("=", 72)
	fmt.Println(line)
	fmt.Printf("📊 SNAPSHOT REPLAY: %s (%s)\n", snap.Symbol, path)
	fmt.Println(line)
	fmt.Printf("Observations: %d raw, %d denoised (saved %s)\n",
		len(snap.Works), len(snap.WorksSmoothed), snap.SavedAt.Format("2006-01-02 15:04:05"))

	if r.Deterministic {
		fmt.Println("✅ Re-smoothing the history reproduces the stored denoised chart")
	} else {
		fmt.Printf("❌ Denoised chart differs from the stored one at index %d\n", r.FirstMismatch)
	}

	fmt.Printf("\n🔎 Signals (%d)\n", len(r.Signals))
	for _, s := range r.Signals {
		icon := "🟢"
		if s.Kind == SignalBump {
			icon = "🔴"
		}
		fmt.Printf("  %s %-6s work #%-6d t=%-8d price=%.8f\n", icon, s.Kind, s.WorkID, s.Time, s.Price)
	}

	fmt.Printf("\n💱 Trades (%d)\n", len(snap.Trades))
	for _, t := range snap.Trades {
		fmt.Printf("  %-12s t=%-8d price=%.8f qty=%.8f benefits=%+.4f %s\n",
			t.Kind, t.Time, t.Price, t.Quantity, t.Benefits, t.Reason)
	}
	fmt.Printf("\nRealized P&L: %+.4f %s\n", r.RealizedPnL, snap.QuoteCurrency)
	fmt.Printf("Wins: %d  Losses: %d\n", r.Wins, r.Losses)
}
