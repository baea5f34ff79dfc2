package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/piotr-liszka/open-dev-activity/internal/repo"
)

var kindColors = map[string]*color.Color{
	"status_change": color.New(color.FgYellow),
	"comment":       color.New(color.FgCyan),
	"review":        color.New(color.FgMagenta),
	"commit":        color.New(color.FgGreen),
	"closed":        color.New(color.FgRed),
	"reopened":      color.New(color.FgRed),
}

func kindColor(kind string) *color.Color {
	if c, ok := kindColors[kind]; ok {
		return c
	}
	return color.New(color.FgWhite)
}

// Render writes a human-readable activity table grouped by repository,
// oldest first within each group.
func Render(w io.Writer, activities []repo.StoredActivity) {
	if len(activities) == 0 {
		fmt.Fprintln(w, "no activity")
		return
	}

	byRepo := map[string][]repo.StoredActivity{}
	var repos []string
	for _, a := range activities {
		if _, ok := byRepo[a.Repository]; !ok {
			repos = append(repos, a.Repository)
		}
		byRepo[a.Repository] = append(byRepo[a.Repository], a)
	}
	sort.Strings(repos)

	bold := color.New(color.Bold)
	dim := color.New(color.Faint)
	for _, repoName := range repos {
		group := byRepo[repoName]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].OccurredAt.Before(group[j].OccurredAt)
		})
		bold.Fprintf(w, "%s (%d)\n", repoName, len(group))
		for _, a := range group {
			dim.Fprintf(w, "  %s  ", a.OccurredAt.Format("2006-01-02 15:04"))
			kindColor(a.Kind).Fprintf(w, "%-13s", a.Kind)
			fmt.Fprintf(w, "  %-18s", clip(a.Author, 18))
			ref := ""
			if a.Number > 0 {
				ref = fmt.Sprintf("#%d ", a.Number)
			}
			fmt.Fprintf(w, "  %s%s\n", ref, clip(a.Description, 70))
		}
		fmt.Fprintln(w)
	}
}

// Stats summarizes activity counts per kind and per author.
type Stats struct {
	Total    int
	ByKind   map[string]int
	ByAuthor map[string]int
}

func Summarize(activities []repo.StoredActivity) Stats {
	st := Stats{
		Total:    len(activities),
		ByKind:   map[string]int{},
		ByAuthor: map[string]int{},
	}
	for _, a := range activities {
		st.ByKind[a.Kind]++
		st.ByAuthor[a.Author]++
	}
	return st
}

func RenderStats(w io.Writer, st Stats) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "total: %d\n", st.Total)
	for _, kind := range sortedKeys(st.ByKind) {
		kindColor(kind).Fprintf(w, "  %-13s", kind)
		fmt.Fprintf(w, " %d\n", st.ByKind[kind])
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clip(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
