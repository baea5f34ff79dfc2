package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/piotr-liszka/open-dev-activity/internal/report"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored activity to CSV or Excel",
	Long:  `Exports records matching the list filters. The format follows the output extension: .csv or .xlsx.`,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "activity.csv", "Output file (.csv or .xlsx)")
	exportCmd.Flags().StringVar(&listAuthor, "author", "", "Filter by author")
	exportCmd.Flags().StringVar(&listRepo, "repo", "", "Filter by repository")
	exportCmd.Flags().StringVar(&listKind, "kind", "", "Filter by activity kind")
	exportCmd.Flags().StringVar(&listFrom, "from", "7 days ago", "Window start")
	exportCmd.Flags().StringVar(&listTo, "to", "now", "Window end")
	exportCmd.Flags().IntVar(&listLimit, "limit", 1000, "Maximum records")
}

func runExport(cmd *cobra.Command, args []string) error {
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

	switch strings.ToLower(filepath.Ext(exportOut)) {
	case ".csv":
		err = report.ExportCSV(exportOut, activities)
	case ".xlsx":
		err = report.ExportExcel(exportOut, activities)
	default:
		return fmt.Errorf("unsupported output extension %q (want .csv or .xlsx)", filepath.Ext(exportOut))
	}
	if err != nil {
		return err
	}
	fmt.Printf("exported %d records to %s\n", len(activities), exportOut)
	return nil
}
