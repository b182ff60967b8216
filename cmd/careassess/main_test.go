package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/careassess/internal/config"
	"github.com/ehr/careassess/internal/domain/riskassessment"
	"github.com/ehr/careassess/internal/platform/middleware"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                    "test",
		LogLevel:               "info",
		CORSOrigins:            []string{"http://localhost:3000"},
		BodyLimit:              "1M",
		LargeDocumentThreshold: 50000,
		CompressionRatio:       0.6,
		MaxEvidenceLines:       3,
	}
}

func testDeps(t *testing.T) *deps {
	t.Helper()
	d, err := buildDeps(testConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("buildDeps: %v", err)
	}
	return d
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// ---------------------------------------------------------------------------
// flag parsing and wiring
// ---------------------------------------------------------------------------

func TestParseWeights(t *testing.T) {
	got, err := parseWeights("70, 68.5,61")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[1] != 68.5 {
		t.Errorf("got %v, want [70 68.5 61]", got)
	}
	if got, _ := parseWeights(""); got != nil {
		t.Errorf("empty input: got %v, want nil", got)
	}
	if _, err := parseWeights("70,heavy"); err == nil {
		t.Error("expected error for non-numeric weight")
	}
}

func TestBuildDeps_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.CompressionRatio = 2
	if _, err := buildDeps(cfg, zerolog.Nop()); err == nil {
		t.Error("expected invalid config to be rejected")
	}

	cfg = testConfig()
	cfg.KeywordTablePath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := buildDeps(cfg, zerolog.Nop()); err == nil {
		t.Error("expected missing keyword table to be rejected")
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	want := map[string]bool{"serve": false, "assess": false, "extract": false, "reduce": false, "keywords": false}
	for _, c := range rootCmd().Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

// ---------------------------------------------------------------------------
// assess
// ---------------------------------------------------------------------------

func TestRunAssess_Markdown(t *testing.T) {
	d := testDeps(t)
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	f := assessFlags{
		carePlan: writeFile(t, "plan.txt", "History of falls. Unsteady when walking."),
		log:      writeFile(t, "log.txt", "01/06/2024\nwater 300ml"),
		weights:  "70,61",
		height:   170,
		age:      85,
		gender:   "female",
		format:   "markdown",
		date:     "2024-06-01",
	}
	if err := runAssess(cmd, d, f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md := out.String()
	if !strings.HasPrefix(md, "# Risk Assessment Summary") {
		t.Errorf("unexpected markdown header: %.60q", md)
	}
	if !strings.Contains(md, "**Assessment Date:** 2024-06-01") {
		t.Error("expected fixed assessment date in output")
	}
}

func TestRunAssess_JSON(t *testing.T) {
	d := testDeps(t)
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("Resident is immobile and incontinent."))

	f := assessFlags{carePlan: "-", age: -1, format: "json"}
	if err := runAssess(cmd, d, f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report riskassessment.AssessmentReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Assessments) != len(riskassessment.DefaultInstruments()) {
		t.Errorf("assessments: got %d, want %d", len(report.Assessments), len(riskassessment.DefaultInstruments()))
	}
	if report.KeywordTableVersion != d.table.Version {
		t.Errorf("table version: got %q, want %q", report.KeywordTableVersion, d.table.Version)
	}
}

func TestRunAssess_Errors(t *testing.T) {
	d := testDeps(t)
	plan := writeFile(t, "plan.txt", "falls")
	tests := map[string]assessFlags{
		"bad format":   {carePlan: plan, format: "pdf"},
		"no input":     {format: "json"},
		"two stdins":   {carePlan: "-", log: "-", format: "json"},
		"bad date":     {carePlan: plan, format: "json", date: "01/06/2024"},
		"bad weights":  {carePlan: plan, format: "json", weights: "a,b"},
		"missing file": {carePlan: filepath.Join(t.TempDir(), "nope.txt"), format: "json"},
	}
	for name, f := range tests {
		cmd := &cobra.Command{}
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetIn(strings.NewReader(""))
		if err := runAssess(cmd, d, f); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestBuildInput_NarrativeLogKeepsEvidence(t *testing.T) {
	cfg := testConfig()
	cfg.LargeDocumentThreshold = 1000
	d, err := buildDeps(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildDeps: %v", err)
	}

	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "%02d/03/2024, resident had breakfast, drank %dml water, settled in lounge\n", i%27+1, 150+i)
	}
	b.WriteString("28/03/2024, resident had lunch, drank 150ml water, fell in lounge and unsteady afterwards\n")
	log := writeFile(t, "log.txt", b.String())

	scores := map[bool]int{}
	for _, noReduce := range []bool{true, false} {
		cmd := &cobra.Command{}
		in, err := buildInput(cmd, d, assessFlags{log: log, age: -1, noReduce: noReduce})
		if err != nil {
			t.Fatalf("buildInput: %v", err)
		}
		if in.LogText != b.String() {
			t.Errorf("noReduce=%v: narrative log was rewritten", noReduce)
		}
		res, ok := d.engine.Run(in).Assessments.Get(riskassessment.KeyFallsScreening)
		if !ok {
			t.Fatal("falls screening missing from report")
		}
		scores[noReduce] = res.Score
	}
	if scores[true] != scores[false] || scores[false] == 0 {
		t.Errorf("falls score: got %d reduced vs %d unreduced, want equal and non-zero", scores[false], scores[true])
	}
}

func TestRunAssess_FixedDateKeepsObserver(t *testing.T) {
	d := testDeps(t)
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	f := assessFlags{carePlan: writeFile(t, "plan.txt", "History of falls."), age: -1, format: "json", date: "2024-06-01"}
	if err := runAssess(cmd, d, f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(d.usage.GetInstrumentStats()); got != len(riskassessment.DefaultInstruments()) {
		t.Errorf("observed instruments: got %d, want %d", got, len(riskassessment.DefaultInstruments()))
	}
}

func TestPrintKeywords(t *testing.T) {
	d := testDeps(t)
	var out bytes.Buffer
	if err := printKeywords(&out, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "keyword table version "+d.table.Version) {
		t.Errorf("unexpected output: %q", out.String())
	}
	if !strings.Contains(out.String(), "falls_history") {
		t.Error("expected falls_history category to be listed")
	}
}

// ---------------------------------------------------------------------------
// server
// ---------------------------------------------------------------------------

func TestServer_Health(t *testing.T) {
	d := testDeps(t)
	e := newServer(d, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request id header")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected security headers")
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["keyword_table_version"] != d.table.Version {
		t.Errorf("got %v", body)
	}
}

func TestServer_RoutesWired(t *testing.T) {
	e := newServer(testDeps(t), zerolog.Nop())

	tests := []struct {
		path string
		body string
	}{
		{"/api/v1/assessments", `{"care_plan_text":"History of falls"}`},
		{"/api/v1/assessments/markdown", `{"log_text":"01/06/2024 water 500ml"}`},
		{"/api/v1/signals", `{"log_text":"01/06/2024 water 500ml"}`},
		{"/api/v1/documents/profile", `{"text":"a,b\n1,2\n3,4"}`},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d: %s", tt.path, rec.Code, rec.Body.String())
		}
	}
}

func TestServer_BodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.BodyLimit = "1K"
	d, err := buildDeps(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("buildDeps: %v", err)
	}
	e := newServer(d, zerolog.Nop())

	body := `{"log_text":"` + strings.Repeat("x", 4096) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestServer_UsageTracksInstrumentRuns(t *testing.T) {
	e := newServer(testDeps(t), zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", strings.NewReader(`{"care_plan_text":"History of falls"}`))
	req.Header.Set("Content-Type", "application/json")
	e.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/usage/instruments", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats []struct {
		Key  string `json:"key"`
		Runs int64  `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stats) != len(riskassessment.DefaultInstruments()) {
		t.Fatalf("got %d instruments, want %d", len(stats), len(riskassessment.DefaultInstruments()))
	}
	for _, s := range stats {
		if s.Runs != 1 {
			t.Errorf("%s: got %d runs, want 1", s.Key, s.Runs)
		}
	}
}
