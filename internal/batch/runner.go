// Package batch drives the per-file export loop: discovery, output table
// preparation, extraction, serialization, and file-state transitions from
// the source directory to the processed or error area.
package batch

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/ccda-export/internal/domain/records"
	"github.com/ehr/ccda-export/internal/platform/ccda"
	"github.com/ehr/ccda-export/internal/platform/export"
)

// DefaultPattern matches the conventional input file names: the literal
// prefix, a patient identifier, an underscore-separated file info token, and
// the xml extension. Matching is case-insensitive.
const DefaultPattern = ccda.FilePrefix + "*.xml"

// Output table file names, created inside the target directory.
const (
	AllergiesFile   = "Allergies.csv"
	MedicationsFile = "Medications.csv"
	ProblemsFile    = "Problems.csv"
	ProceduresFile  = "Procedures.csv"
	VitalsFile      = "Vitals.csv"
	ReportFile      = "Report.csv"
)

// ErrNoInputFiles is returned when startup validation finds nothing to do.
var ErrNoInputFiles = errors.New("batch: no input files match the pattern")

// Options configures one export run.
type Options struct {
	SourceDir string
	TargetDir string
	ErrorDir  string
	Pattern   string
	Append    bool
}

// Result holds the aggregate outcome of a run. A run "had errors" when at
// least one file failed; startup validation failures surface as an error
// from Run instead.
type Result struct {
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// Runner processes every matching source file exactly once, sequentially.
// All identifier counters live in the tables and the state value threaded
// through processFile; nothing is shared across goroutines because there is
// only one.
type Runner struct {
	opts      Options
	log       zerolog.Logger
	extractor *ccda.Extractor

	allergies   *export.Table
	medications *export.Table
	problems    *export.Table
	procedures  *export.Table
	vitals      *export.Table
	report      *export.Table
}

// NewRunner creates a runner for the given options. An empty pattern falls
// back to DefaultPattern.
func NewRunner(opts Options, log zerolog.Logger) *Runner {
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	r := &Runner{opts: opts, log: log, extractor: ccda.NewExtractor()}

	r.allergies = export.NewTable(filepath.Join(opts.TargetDir, AllergiesFile), records.AllergyColumns)
	r.medications = export.NewTable(filepath.Join(opts.TargetDir, MedicationsFile), records.MedicationColumns)
	r.problems = export.NewTable(filepath.Join(opts.TargetDir, ProblemsFile), records.ProblemColumns)
	r.procedures = export.NewTable(filepath.Join(opts.TargetDir, ProceduresFile), records.ProcedureColumns)
	r.vitals = export.NewTable(filepath.Join(opts.TargetDir, VitalsFile), records.VitalsColumns)
	r.report = export.NewTable(filepath.Join(opts.TargetDir, ReportFile), records.ReportColumns)
	return r
}

// state is the mutable run state threaded through the per-file step: the
// report sequence is owned by the report table, so only the outcome totals
// travel here.
type state struct {
	succeeded int
	failed    int
}

// Run validates the run preconditions, prepares the output tables, and
// processes every discovered file in enumeration order. Fatal errors
// (missing directories, no input, unpreparable tables, or an append/move
// failure mid-run) abort with an error; per-file extraction failures do not.
func (r *Runner) Run() (Result, error) {
	for _, dir := range []struct{ name, path string }{
		{"source", r.opts.SourceDir},
		{"target", r.opts.TargetDir},
		{"error", r.opts.ErrorDir},
	} {
		if info, err := os.Stat(dir.path); err != nil || !info.IsDir() {
			return Result{}, fmt.Errorf("batch: %s directory %q does not exist", dir.name, dir.path)
		}
	}

	files, err := r.discover()
	if err != nil {
		return Result{}, err
	}
	if len(files) == 0 {
		return Result{}, fmt.Errorf("%w: %s in %s", ErrNoInputFiles, r.opts.Pattern, r.opts.SourceDir)
	}

	for _, t := range r.tables() {
		if err := t.Prepare(r.opts.Append); err != nil {
			return Result{}, err
		}
	}

	start := time.Now()
	var st state
	for i, file := range files {
		st, err = r.processFile(st, file)
		if err != nil {
			return Result{}, err
		}
		r.log.Info().
			Int("processed", i+1).
			Int("total", len(files)).
			Str("file", filepath.Base(file)).
			Msg("file processed")
	}

	return Result{
		Total:     len(files),
		Succeeded: st.succeeded,
		Failed:    st.failed,
		Elapsed:   time.Since(start),
	}, nil
}

// discover lists source files matching the pattern, case-insensitively, in
// sorted order.
func (r *Runner) discover() ([]string, error) {
	entries, err := os.ReadDir(r.opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("batch: read source directory: %w", err)
	}

	pattern := strings.ToLower(r.opts.Pattern)
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ok, err := path.Match(pattern, strings.ToLower(entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("batch: bad file pattern %q: %w", r.opts.Pattern, err)
		}
		if ok {
			files = append(files, filepath.Join(r.opts.SourceDir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func (r *Runner) tables() []*export.Table {
	return []*export.Table{
		r.allergies, r.medications, r.problems, r.procedures, r.vitals, r.report,
	}
}

// processFile runs one file through extraction and serialization and returns
// the updated run state. Extraction failures are isolated: the file moves to
// the error area and the batch continues. I/O failures on append or move are
// returned and abort the run.
func (r *Runner) processFile(st state, file string) (state, error) {
	doc := r.extractor.ExtractFile(file)

	if !doc.Loaded() {
		r.log.Warn().Str("file", doc.FileName).Err(doc.Err).Msg("document rejected")
		if err := moveTo(file, r.opts.ErrorDir); err != nil {
			return st, err
		}
		row := records.ReportRow{FileName: doc.FileName, Result: doc.Err.Error()}
		if err := r.report.Append(row.Row(r.report.NextID())); err != nil {
			return st, err
		}
		st.failed++
		return st, nil
	}

	counts, err := r.writeRecords(doc)
	if err != nil {
		return st, err
	}

	if err := moveTo(file, r.opts.TargetDir); err != nil {
		return st, err
	}

	counts.FileName = doc.FileName
	counts.Result = "Success"
	if err := r.report.Append(counts.Row(r.report.NextID())); err != nil {
		return st, err
	}
	st.succeeded++
	return st, nil
}

// writeRecords serializes every non-empty record of an accepted document,
// assigning each row the next identifier of its table.
func (r *Runner) writeRecords(doc *ccda.Document) (records.ReportRow, error) {
	var counts records.ReportRow

	for _, rec := range doc.Allergies {
		if rec.Empty() {
			continue
		}
		if err := r.allergies.Append(rec.Row(r.allergies.NextID(), doc.PatientID, doc.FileInfo)); err != nil {
			return counts, err
		}
		counts.Allergies++
	}
	for _, rec := range doc.Medications {
		if rec.Empty() {
			continue
		}
		if err := r.medications.Append(rec.Row(r.medications.NextID(), doc.PatientID, doc.FileInfo)); err != nil {
			return counts, err
		}
		counts.Medication++
	}
	for _, rec := range doc.Problems {
		if rec.Empty() {
			continue
		}
		if err := r.problems.Append(rec.Row(r.problems.NextID(), doc.PatientID, doc.FileInfo)); err != nil {
			return counts, err
		}
		counts.Problems++
	}
	for _, rec := range doc.Procedures {
		if err := r.procedures.Append(rec.Row(r.procedures.NextID(), doc.PatientID, doc.FileInfo)); err != nil {
			return counts, err
		}
		counts.Procedures++
	}
	for _, rec := range doc.Vitals {
		if rec.Empty() {
			continue
		}
		if err := r.vitals.Append(rec.Row(r.vitals.NextID(), doc.PatientID, doc.FileInfo)); err != nil {
			return counts, err
		}
		counts.Vitals++
	}
	return counts, nil
}

func moveTo(file, dir string) error {
	dest := filepath.Join(dir, filepath.Base(file))
	if err := os.Rename(file, dest); err != nil {
		return fmt.Errorf("batch: move %s to %s: %w", filepath.Base(file), dir, err)
	}
	return nil
}
