package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/piotr-liszka/open-dev-activity/internal/repo"
)

// ExportCSV writes activities to a CSV file, one row per record.
func ExportCSV(path string, activities []repo.StoredActivity) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"#",
		"Occurred At",
		"Kind",
		"Author",
		"Repository",
		"Number",
		"Title",
		"Description",
		"URL",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, a := range activities {
		row := []string{
			fmt.Sprintf("%d", i+1),
			a.OccurredAt.UTC().Format(time.RFC3339),
			a.Kind,
			a.Author,
			a.Repository,
			fmt.Sprintf("%d", a.Number),
			a.Title,
			a.Description,
			a.URL,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
