package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/piotr-liszka/open-dev-activity/internal/repo"
)

func sample() []repo.StoredActivity {
	at := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	return []repo.StoredActivity{
		{Kind: "comment", Author: "alice", OccurredAt: at, Repository: "acme/widgets", Number: 42, Description: "looks good"},
		{Kind: "commit", Author: "bob", OccurredAt: at.Add(time.Hour), Repository: "acme/gears", Number: 7, Description: "fix: frobnicate"},
		{Kind: "comment", Author: "alice", OccurredAt: at.Add(2 * time.Hour), Repository: "acme/widgets", Number: 42, Description: "second pass"},
	}
}

func TestRender_GroupsByRepository(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	Render(&buf, sample())
	out := buf.String()

	gears := strings.Index(out, "acme/gears (1)")
	widgets := strings.Index(out, "acme/widgets (2)")
	if gears < 0 || widgets < 0 {
		t.Fatalf("missing group headers:\n%s", out)
	}
	if gears > widgets {
		t.Fatalf("groups not sorted by repository:\n%s", out)
	}
	if !strings.Contains(out, "#42 looks good") {
		t.Fatalf("missing activity row:\n%s", out)
	}
}

func TestRender_Empty(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	Render(&buf, nil)
	if !strings.Contains(buf.String(), "no activity") {
		t.Fatalf("empty render: %q", buf.String())
	}
}

func TestSummarize(t *testing.T) {
	st := Summarize(sample())
	if st.Total != 3 {
		t.Fatalf("total: want 3, got %d", st.Total)
	}
	if st.ByKind["comment"] != 2 || st.ByKind["commit"] != 1 {
		t.Fatalf("by kind: %+v", st.ByKind)
	}
	if st.ByAuthor["alice"] != 2 {
		t.Fatalf("by author: %+v", st.ByAuthor)
	}
}
