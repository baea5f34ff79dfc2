package main

import (
	"context"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	syncFrom string
	syncTo   string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass over a time window",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncFrom, "from", "1 hour ago", "Window start (now, \"N days ago\", YYYY-MM-DD, RFC3339)")
	syncCmd.Flags().StringVar(&syncTo, "to", "now", "Window end (same formats)")
}

func runSync(cmd *cobra.Command, args []string) error {
	window, err := parseWindow(syncFrom, syncTo, time.Now().UTC())
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	bar := newSpinner(fmt.Sprintf("Syncing %s .. %s",
		window.From.Format("2006-01-02 15:04"), window.To.Format("2006-01-02 15:04")))
	sum, err := a.svc.Sync(ctx, window)
	finishBar(bar)
	if err != nil {
		return err
	}

	fmt.Printf("\nrun %s finished in %s\n", sum.RunID, sum.Elapsed.Round(time.Millisecond))
	fmt.Printf("  collected: %d  persisted: %d  dropped: %d\n", sum.Collected, sum.Persisted, sum.Dropped)
	for _, src := range sum.Sources {
		status := "ok"
		if src.Error != "" {
			status = src.Error
		}
		fmt.Printf("  %-10s %5d events  %s\n", src.Name, src.Events, status)
	}
	return nil
}

func newSpinner(description string) *progressbar.ProgressBar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
	_ = bar.RenderBlank()
	return bar
}

func finishBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}
