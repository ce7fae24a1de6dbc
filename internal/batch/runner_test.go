package batch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

const goodDoc = `<?xml version="1.0" encoding="UTF-8"?>
<ClinicalDocument xmlns="urn:hl7-org:v3">
  <title>Continuity of Care Document</title>
  <component>
    <structuredBody>
      <component>
        <section>
          <code code="48765-2"/>
          <title>Allergies</title>
          <entry>
            <act>
              <statusCode code="active"/>
              <effectiveTime><low value="20100215"/></effectiveTime>
              <entryRelationship typeCode="SUBJ">
                <observation>
                  <value displayName="Penicillin"/>
                  <entryRelationship typeCode="MFST">
                    <observation><value displayName="Hives"/></observation>
                  </entryRelationship>
                </observation>
              </entryRelationship>
            </act>
          </entry>
        </section>
      </component>
    </structuredBody>
  </component>
</ClinicalDocument>`

const brokenDoc = `<ClinicalDocument xmlns="urn:hl7-org:v3"><title>Broken`

// dirs creates the three run directories under one temp root.
func dirs(t *testing.T) (source, target, errDir string) {
	t.Helper()
	root := t.TempDir()
	source = filepath.Join(root, "pending")
	target = filepath.Join(root, "processed")
	errDir = filepath.Join(root, "error")
	for _, d := range []string{source, target, errDir} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return source, target, errDir
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func newRunner(source, target, errDir string, appendMode bool) *Runner {
	return NewRunner(Options{
		SourceDir: source,
		TargetDir: target,
		ErrorDir:  errDir,
		Append:    appendMode,
	}, zerolog.Nop())
}

func TestRun_EndToEnd(t *testing.T) {
	source, target, errDir := dirs(t)
	writeDoc(t, source, "ccd123_A.xml", goodDoc)
	writeDoc(t, source, "ccd456_B.xml", brokenDoc)

	result, err := newRunner(source, target, errDir, false).Run()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Total != 2 || result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("result: %+v", result)
	}

	// Accepted document relocated to the target area, rejected one to the
	// error area; neither remains in the source.
	if _, err := os.Stat(filepath.Join(target, "ccd123_A.xml")); err != nil {
		t.Error("good document not in target directory")
	}
	if _, err := os.Stat(filepath.Join(errDir, "ccd456_B.xml")); err != nil {
		t.Error("broken document not in error directory")
	}
	if entries, _ := os.ReadDir(source); len(entries) != 0 {
		t.Error("source directory should be drained")
	}

	allergies := readLines(t, filepath.Join(target, AllergiesFile))
	if len(allergies) != 2 {
		t.Fatalf("allergies table: got %d lines, want header + 1 row", len(allergies))
	}
	want := "1,123,A,Penicillin,active,02/15/2010,Hives,,,"
	if allergies[1] != want {
		t.Errorf("allergy row:\n got %q\nwant %q", allergies[1], want)
	}

	report := readLines(t, filepath.Join(target, ReportFile))
	if len(report) != 3 {
		t.Fatalf("report table: got %d lines, want header + 2 rows", len(report))
	}
	if !strings.HasPrefix(report[1], "1,ccd123_A.xml,Success,1,0,0,0,0") {
		t.Errorf("success report row: got %q", report[1])
	}
	if !strings.HasPrefix(report[2], "2,ccd456_B.xml,") || !strings.HasSuffix(report[2], ",0,0,0,0,0") {
		t.Errorf("failure report row: got %q", report[2])
	}

	// Empty categories still get prepared tables with headers.
	for _, name := range []string{MedicationsFile, ProblemsFile, ProceduresFile, VitalsFile} {
		lines := readLines(t, filepath.Join(target, name))
		if len(lines) != 1 {
			t.Errorf("%s: got %d lines, want header only", name, len(lines))
		}
	}
}

func TestRun_FreshModeIsIdempotent(t *testing.T) {
	source, target, errDir := dirs(t)
	writeDoc(t, source, "ccd123_A.xml", goodDoc)

	if _, err := newRunner(source, target, errDir, false).Run(); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := readLines(t, filepath.Join(target, AllergiesFile))

	// Same document arrives again; a fresh (non-append) run replaces the
	// tables instead of accumulating.
	writeDoc(t, source, "ccd123_A.xml", goodDoc)
	if _, err := newRunner(source, target, errDir, false).Run(); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := readLines(t, filepath.Join(target, AllergiesFile))

	if strings.Join(first, "\n") != strings.Join(second, "\n") {
		t.Errorf("fresh re-run differs:\nfirst  %q\nsecond %q", first, second)
	}
}

func TestRun_AppendModeContinuesIdentifiers(t *testing.T) {
	source, target, errDir := dirs(t)

	// Existing table from a previous run whose last allergy row is 7.
	existing := "Id,PatientId,FileInfo,AllergyName,Status,StartDate,Reaction,Icd9,Category,Note\n" +
		"7,99,OLD,Sulfa,active,01/01/2009,Rash,,,\n"
	if err := os.WriteFile(filepath.Join(target, AllergiesFile), []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	writeDoc(t, source, "ccd123_A.xml", goodDoc)
	result, err := newRunner(source, target, errDir, true).Run()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Failed != 0 {
		t.Fatalf("result: %+v", result)
	}

	lines := readLines(t, filepath.Join(target, AllergiesFile))
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[1], "7,") {
		t.Errorf("existing row touched: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "8,") {
		t.Errorf("continued row: got %q, want identifier 8", lines[2])
	}
}

func TestRun_MissingDirectoriesAreFatal(t *testing.T) {
	source, target, errDir := dirs(t)
	writeDoc(t, source, "ccd123_A.xml", goodDoc)

	tests := []struct {
		name string
		opts Options
	}{
		{"missing source", Options{SourceDir: filepath.Join(source, "nope"), TargetDir: target, ErrorDir: errDir}},
		{"missing target", Options{SourceDir: source, TargetDir: filepath.Join(target, "nope"), ErrorDir: errDir}},
		{"missing error", Options{SourceDir: source, TargetDir: target, ErrorDir: filepath.Join(errDir, "nope")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRunner(tt.opts, zerolog.Nop()).Run(); err == nil {
				t.Fatal("expected fatal startup error")
			}
			// No output file may be touched before validation passes.
			if _, err := os.Stat(filepath.Join(target, AllergiesFile)); !os.IsNotExist(err) {
				t.Error("output table created despite failed validation")
			}
		})
	}
}

func TestRun_NoMatchingFilesIsFatal(t *testing.T) {
	source, target, errDir := dirs(t)
	writeDoc(t, source, "unrelated.txt", "x")

	_, err := newRunner(source, target, errDir, false).Run()
	if err == nil {
		t.Fatal("expected error for empty input set")
	}
	if !strings.Contains(err.Error(), "no input files") {
		t.Errorf("got %v", err)
	}
}

func TestRun_PatternMatchesCaseInsensitively(t *testing.T) {
	source, target, errDir := dirs(t)
	writeDoc(t, source, "CCD123_A.XML", goodDoc)

	result, err := newRunner(source, target, errDir, false).Run()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Succeeded != 1 {
		t.Errorf("result: %+v", result)
	}
}

func TestRun_FailureDoesNotAbortBatch(t *testing.T) {
	source, target, errDir := dirs(t)
	// Broken file sorts first: later files must still process.
	writeDoc(t, source, "ccd1_A.xml", brokenDoc)
	writeDoc(t, source, "ccd2_B.xml", goodDoc)

	result, err := newRunner(source, target, errDir, false).Run()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("result: %+v", result)
	}

	report := readLines(t, filepath.Join(target, ReportFile))
	if len(report) != 3 {
		t.Fatalf("report: got %d lines", len(report))
	}
	if !strings.HasPrefix(report[1], "1,ccd1_A.xml,") {
		t.Errorf("first report row: %q", report[1])
	}
	if !strings.HasPrefix(report[2], "2,ccd2_B.xml,Success,") {
		t.Errorf("second report row: %q", report[2])
	}
}
