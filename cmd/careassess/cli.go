package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/careassess/internal/domain/riskassessment"
	"github.com/ehr/careassess/internal/domain/signals"
)

// readSource reads a file, or stdin when path is "-". An empty path reads
// nothing.
func readSource(cmd *cobra.Command, path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseWeights parses "70,68.5,61" oldest first.
func parseWeights(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// assess
// ---------------------------------------------------------------------------

type assessFlags struct {
	carePlan string
	log      string
	weights  string
	height   float64
	age      int
	gender   string
	format   string
	date     string
	noReduce bool
}

func assessCmd() *cobra.Command {
	var f assessFlags
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Score a care plan and daily log against every instrument",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger())
			if err != nil {
				return err
			}
			return runAssess(cmd, d, f)
		},
	}
	cmd.Flags().StringVar(&f.carePlan, "care-plan", "", "care plan file (- for stdin)")
	cmd.Flags().StringVar(&f.log, "log", "", "daily log file (- for stdin)")
	cmd.Flags().StringVar(&f.weights, "weights", "", "weight series in kg, oldest first, e.g. 70,61")
	cmd.Flags().Float64Var(&f.height, "height", 0, "height in cm")
	cmd.Flags().IntVar(&f.age, "age", -1, "resident age in years")
	cmd.Flags().StringVar(&f.gender, "gender", "", "resident gender (female|male)")
	cmd.Flags().StringVar(&f.format, "format", "json", "output format (json|markdown)")
	cmd.Flags().StringVar(&f.date, "date", "", "assessment date YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&f.noReduce, "no-reduce", false, "score oversized logs without reducing them first")
	return cmd
}

func buildInput(cmd *cobra.Command, d *deps, f assessFlags) (riskassessment.Input, error) {
	var in riskassessment.Input
	if f.carePlan == "-" && f.log == "-" {
		return in, fmt.Errorf("only one of --care-plan and --log may read stdin")
	}
	var err error
	if in.CarePlanText, err = readSource(cmd, f.carePlan); err != nil {
		return in, err
	}
	if in.LogText, err = readSource(cmd, f.log); err != nil {
		return in, err
	}
	if strings.TrimSpace(in.CarePlanText) == "" && strings.TrimSpace(in.LogText) == "" {
		return in, fmt.Errorf("a care plan or a daily log is required")
	}
	if !f.noReduce {
		reduced, stats := d.reducer.Prepare(in.LogText)
		if stats.Reduced {
			in.LogText = reduced
		}
	}
	if in.WeightSeries, err = parseWeights(f.weights); err != nil {
		return in, err
	}
	if f.height > 0 {
		h := f.height
		in.HeightCM = &h
	}
	if f.age >= 0 {
		a := f.age
		in.Resident.Age = &a
	}
	in.Resident.Gender = f.gender
	return in, nil
}

func runAssess(cmd *cobra.Command, d *deps, f assessFlags) error {
	if f.format != "json" && f.format != "markdown" {
		return fmt.Errorf("--format must be json or markdown, got %q", f.format)
	}
	in, err := buildInput(cmd, d, f)
	if err != nil {
		return err
	}

	engine := d.engine
	if f.date != "" {
		day, err := time.Parse(riskassessment.DateLayout, f.date)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		opts := append(slices.Clone(d.engineOpts), riskassessment.WithClock(func() time.Time { return day }))
		engine = riskassessment.NewEngine(d.table, opts...)
	}

	report := engine.Run(in)
	if f.format == "markdown" {
		_, err := io.WriteString(cmd.OutOrStdout(), riskassessment.RenderMarkdown(report))
		return err
	}
	return writeJSON(cmd.OutOrStdout(), report)
}

// ---------------------------------------------------------------------------
// extract
// ---------------------------------------------------------------------------

func extractCmd() *cobra.Command {
	var logPath string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract dated bowel, fluid, food and incident signals from a daily log",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(zerolog.Nop())
			if err != nil {
				return err
			}
			text, err := readSource(cmd, logPath)
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("--log is required")
			}
			s := signals.NewExtractor(d.table).Extract(text)
			return writeJSON(cmd.OutOrStdout(), signals.ExtractResponse{
				Signals: s,
				Summary: signals.Summarize(s, d.table),
			})
		},
	}
	cmd.Flags().StringVar(&logPath, "log", "-", "daily log file (- for stdin)")
	return cmd
}

// ---------------------------------------------------------------------------
// reduce
// ---------------------------------------------------------------------------

func reduceCmd() *cobra.Command {
	var (
		input       string
		profileOnly bool
	)
	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Profile and reduce an oversized tabular log",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(zerolog.Nop())
			if err != nil {
				return err
			}
			text, err := readSource(cmd, input)
			if err != nil {
				return err
			}
			if profileOnly {
				p, err := d.reducer.Profile(text)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), p)
			}
			out, stats := d.reducer.Prepare(text)
			if !stats.Reduced {
				fmt.Fprintf(cmd.ErrOrStderr(), "document not reduced: %s\n", stats.Reason)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&input, "input", "-", "document file (- for stdin)")
	cmd.Flags().BoolVar(&profileOnly, "profile-only", false, "print the column profile as JSON instead of reducing")
	return cmd
}

// ---------------------------------------------------------------------------
// keywords
// ---------------------------------------------------------------------------

func keywordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keywords",
		Short: "Show the active keyword table version and categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(zerolog.Nop())
			if err != nil {
				return err
			}
			return printKeywords(cmd.OutOrStdout(), d)
		},
	}
}

func printKeywords(w io.Writer, d *deps) error {
	if _, err := fmt.Fprintf(w, "keyword table version %s\n", d.table.Version); err != nil {
		return err
	}
	for _, name := range d.table.CategoryNames() {
		c := d.table.Category(name)
		fmt.Fprintf(w, "  %-28s %d keyword(s)", name, len(c.Keywords))
		if len(c.HighKeywords) > 0 {
			fmt.Fprintf(w, ", %d high-severity", len(c.HighKeywords))
		}
		fmt.Fprintln(w)
	}
	return nil
}
