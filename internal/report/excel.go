package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/piotr-liszka/open-dev-activity/internal/repo"
)

// ExportExcel writes an activity workbook: one summary sheet with per-kind
// and per-author counts, then one sheet per repository.
func ExportExcel(path string, activities []repo.StoredActivity) error {
	f := excelize.NewFile()
	defer f.Close()

	byRepo := map[string][]repo.StoredActivity{}
	var repos []string
	for _, a := range activities {
		if _, ok := byRepo[a.Repository]; !ok {
			repos = append(repos, a.Repository)
		}
		byRepo[a.Repository] = append(byRepo[a.Repository], a)
	}
	sort.Strings(repos)

	if err := summarySheet(f, activities, repos, byRepo); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	for _, repoName := range repos {
		if err := repoSheet(f, sanitizeSheetName(repoName), byRepo[repoName]); err != nil {
			return fmt.Errorf("sheet %s: %w", repoName, err)
		}
	}
	_ = f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func headerStyle(f *excelize.File) int {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	return style
}

func summarySheet(f *excelize.File, activities []repo.StoredActivity, repos []string, byRepo map[string][]repo.StoredActivity) error {
	const sheet = "Summary"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	style := headerStyle(f)

	st := Summarize(activities)
	f.SetCellValue(sheet, "A1", "Total activities")
	f.SetCellValue(sheet, "B1", st.Total)

	row := 3
	f.SetCellValue(sheet, cellName(1, row), "Kind")
	f.SetCellValue(sheet, cellName(2, row), "Count")
	f.SetCellStyle(sheet, cellName(1, row), cellName(2, row), style)
	row++
	for _, kind := range sortedKeys(st.ByKind) {
		f.SetCellValue(sheet, cellName(1, row), kind)
		f.SetCellValue(sheet, cellName(2, row), st.ByKind[kind])
		row++
	}

	row++
	f.SetCellValue(sheet, cellName(1, row), "Author")
	f.SetCellValue(sheet, cellName(2, row), "Count")
	f.SetCellStyle(sheet, cellName(1, row), cellName(2, row), style)
	row++
	for _, author := range sortedKeys(st.ByAuthor) {
		f.SetCellValue(sheet, cellName(1, row), author)
		f.SetCellValue(sheet, cellName(2, row), st.ByAuthor[author])
		row++
	}

	row++
	f.SetCellValue(sheet, cellName(1, row), "Repository")
	f.SetCellValue(sheet, cellName(2, row), "Count")
	f.SetCellStyle(sheet, cellName(1, row), cellName(2, row), style)
	row++
	for _, repoName := range repos {
		f.SetCellValue(sheet, cellName(1, row), repoName)
		f.SetCellValue(sheet, cellName(2, row), len(byRepo[repoName]))
		row++
	}

	f.SetColWidth(sheet, "A", "A", 30)
	f.SetColWidth(sheet, "B", "B", 12)
	return nil
}

func repoSheet(f *excelize.File, sheet string, activities []repo.StoredActivity) error {
	index, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	style := headerStyle(f)

	headers := []string{"#", "Occurred At", "Kind", "Author", "Number", "Title", "Description", "URL"}
	for col, header := range headers {
		cell := cellName(col+1, 1)
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, style)
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].OccurredAt.Before(activities[j].OccurredAt)
	})
	for i, a := range activities {
		row := i + 2
		f.SetCellValue(sheet, cellName(1, row), i+1)
		f.SetCellValue(sheet, cellName(2, row), a.OccurredAt.UTC().Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheet, cellName(3, row), a.Kind)
		f.SetCellValue(sheet, cellName(4, row), a.Author)
		f.SetCellValue(sheet, cellName(5, row), a.Number)
		f.SetCellValue(sheet, cellName(6, row), a.Title)
		f.SetCellValue(sheet, cellName(7, row), a.Description)
		f.SetCellValue(sheet, cellName(8, row), a.URL)
	}

	f.SetColWidth(sheet, "A", "A", 5)
	f.SetColWidth(sheet, "B", "B", 20)
	f.SetColWidth(sheet, "C", "D", 16)
	f.SetColWidth(sheet, "F", "G", 45)
	f.SetColWidth(sheet, "H", "H", 40)
	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	return nil
}

func cellName(col, row int) string {
	return fmt.Sprintf("%s%d", columnLetter(col), row)
}

func columnLetter(col int) string {
	result := ""
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}

func sanitizeSheetName(name string) string {
	for _, bad := range []string{"/", "\\", "?", "*", "[", "]", ":"} {
		name = strings.ReplaceAll(name, bad, "-")
	}
	if len(name) > 31 {
		name = name[:31]
	}
	if name == "" {
		name = "Unknown"
	}
	return name
}
