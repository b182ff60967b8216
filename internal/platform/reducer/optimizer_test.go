package reducer

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestOptimizeLog_ShortLogUnchanged(t *testing.T) {
	r := New(0, 0, nil)
	log := "Quiet afternoon in lounge\nDrank water with lunch"
	if got := r.OptimizeLog(log, 0); got != log {
		t.Errorf("got %q, want unchanged", got)
	}
}

func TestOptimizeLog_KeepsCareAndNumericLines(t *testing.T) {
	r := New(0, 0, nil)
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, "Quiet afternoon in lounge")
		if i%40 == 0 {
			lines = append(lines, "Drank water with lunch")
		}
	}
	lines = append(lines, "Temp 36.8")

	got := r.OptimizeLog(strings.Join(lines, "\n"), 500)
	want := strings.Repeat("Drank water with lunch\n", 5) + "Temp 36.8"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestOptimizeLog_FallsBackToRecentLines(t *testing.T) {
	r := New(0, 0, nil)
	var lines []string
	for i := 0; i < 200; i++ {
		lines = append(lines, "water 200ml")
	}
	lines[199] = "water 999ml"

	got := strings.Split(r.OptimizeLog(strings.Join(lines, "\n"), 500), "\n")
	if len(got) != recentLines {
		t.Fatalf("lines: got %d, want %d", len(got), recentLines)
	}
	if got[len(got)-1] != "water 999ml" {
		t.Errorf("last line: got %q", got[len(got)-1])
	}
}

func TestSummarizeCarePlan(t *testing.T) {
	r := New(0, 0, nil)
	plan := "# Mobility\nName: John\n" +
		strings.Repeat("Likes gardening\n", 100) +
		"Pain managed with paracetamol\n\n"

	got := r.SummarizeCarePlan(plan, 200)
	want := "# Mobility\nName: John\nPain managed with paracetamol"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if utf8.RuneCountInString(r.SummarizeCarePlan("# Short", 0)) != len("# Short") {
		t.Error("short plan must be unchanged")
	}
}
