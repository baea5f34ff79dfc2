package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/piotr-liszka/open-dev-activity/internal/repo"
	"github.com/piotr-liszka/open-dev-activity/internal/report"
)

var (
	listAuthor string
	listRepo   string
	listKind   string
	listFrom   string
	listTo     string
	listLimit  int
	listStats  bool
	listJSON   bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show stored activity records",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listAuthor, "author", "", "Filter by author")
	listCmd.Flags().StringVar(&listRepo, "repo", "", "Filter by repository")
	listCmd.Flags().StringVar(&listKind, "kind", "", "Filter by activity kind")
	listCmd.Flags().StringVar(&listFrom, "from", "7 days ago", "Window start")
	listCmd.Flags().StringVar(&listTo, "to", "now", "Window end")
	listCmd.Flags().IntVar(&listLimit, "limit", 200, "Maximum records")
	listCmd.Flags().BoolVar(&listStats, "stats", false, "Print per-kind counts instead of rows")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Emit records as JSON instead of a table")
}

func listFilter() (repo.Filter, error) {
	window, err := parseWindow(listFrom, listTo, time.Now().UTC())
	if err != nil {
		return repo.Filter{}, err
	}
	return repo.Filter{
		Author:     listAuthor,
		Repository: listRepo,
		Kind:       listKind,
		From:       &window.From,
		To:         &window.To,
		Limit:      listLimit,
	}, nil
}

func runList(cmd *cobra.Command, args []string) error {
	f, err := listFilter()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	activities, err := a.repo.ListActivities(ctx, f)
	if err != nil {
		return err
	}
	if listJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(activities)
	}
	if listStats {
		report.RenderStats(os.Stdout, report.Summarize(activities))
		return nil
	}
	report.Render(os.Stdout, activities)
	return nil
}
