package records

import (
	"strings"
	"time"

	"github.com/ehr/ccda-export/internal/platform/export"
)

// Unit conversion constants for vital sign readings. Readings are stored
// canonically in US customary units; metric equivalents are computed at
// serialization time so there is a single source of truth.
const (
	GramsPerPound      = 453.592
	CentimetersPerInch = 2.54
)

// Column headers for each output table. The first column of every table is
// the per-category sequential identifier assigned by the batch runner.
var (
	AllergyColumns = []string{"Id", "PatientId", "FileInfo", "AllergyName",
		"Status", "StartDate", "Reaction", "Icd9", "Category", "Note"}
	MedicationColumns = []string{"Id", "PatientId", "FileInfo", "DrugName",
		"Status", "MedicationId", "StartDate", "EndDate", "Sig", "Prescriber",
		"DispensableDrugName", "Strength", "StrengthUnit", "DispenseAmount",
		"DispenseUnit", "DoseForm", "Route"}
	ProblemColumns   = []string{"Id", "PatientId", "FileInfo", "ProblemName", "Status", "StartDate"}
	ProcedureColumns = []string{"Id", "PatientId", "FileInfo", "ProcedureName", "StartDate"}
	VitalsColumns    = []string{"Id", "PatientId", "FileInfo", "ReadingDate",
		"WeightLbs", "WeightGrams", "HeightInches", "HeightCm",
		"TemperatureF", "TemperatureC", "SystolicBP", "DiastolicBP", "HeartRate"}
	ReportColumns = []string{"Id", "FileName", "Result", "Allergies",
		"Medications", "Problems", "Procedures", "Vitals"}
)

// Allergy is one allergy entry extracted from the allergies section.
// Icd9, Category, and Note are reserved columns: the source documents carry
// no data from which they could be derived, so they always render empty.
type Allergy struct {
	Name      string
	Status    string
	StartDate time.Time
	Reaction  string
}

// Empty reports whether the record carries no allergy name and should be
// dropped at serialization time.
func (a Allergy) Empty() bool {
	return strings.TrimSpace(a.Name) == ""
}

// Row renders the record as one CSV line for the Allergies table.
func (a Allergy) Row(id int64, patientID, fileInfo string) string {
	return export.Join(
		export.Int(id),
		export.String(patientID),
		export.String(fileInfo),
		export.String(a.Name),
		export.String(a.Status),
		export.Date(a.StartDate),
		export.String(a.Reaction),
		"", // Icd9
		"", // Category
		"", // Note
	)
}

// Medication is one medication order extracted from the medications section.
// Status is never read from the document; it is recomputed from the presence
// of an end date. MedicationID is a reserved column.
type Medication struct {
	DrugName            string
	Status              string
	StartDate           time.Time
	EndDate             time.Time
	Sig                 string
	Prescriber          string
	DispensableDrugName string
	Strength            string
	StrengthUnit        string
	DispenseAmount      string
	DispenseUnit        string
	DoseForm            string
	Route               string
}

// Empty reports whether the record carries no drug name.
func (m Medication) Empty() bool {
	return strings.TrimSpace(m.DrugName) == ""
}

// Row renders the record as one CSV line for the Medications table.
func (m Medication) Row(id int64, patientID, fileInfo string) string {
	return export.Join(
		export.Int(id),
		export.String(patientID),
		export.String(fileInfo),
		export.String(m.DrugName),
		export.String(m.Status),
		"", // MedicationId
		export.Date(m.StartDate),
		export.Date(m.EndDate),
		export.String(m.Sig),
		export.String(m.Prescriber),
		export.String(m.DispensableDrugName),
		export.String(m.Strength),
		export.String(m.StrengthUnit),
		export.String(m.DispenseAmount),
		export.String(m.DispenseUnit),
		export.String(m.DoseForm),
		export.String(m.Route),
	)
}

// Problem is one problem-list entry.
type Problem struct {
	Name      string
	Status    string
	StartDate time.Time
}

// Empty reports whether the record carries no problem name.
func (p Problem) Empty() bool {
	return strings.TrimSpace(p.Name) == ""
}

// Row renders the record as one CSV line for the Problems table.
func (p Problem) Row(id int64, patientID, fileInfo string) string {
	return export.Join(
		export.Int(id),
		export.String(patientID),
		export.String(fileInfo),
		export.String(p.Name),
		export.String(p.Status),
		export.Date(p.StartDate),
	)
}

// Procedure is one procedure entry. Procedures are emitted unconditionally,
// so the type carries no emptiness predicate.
type Procedure struct {
	Name      string
	StartDate time.Time
}

// Row renders the record as one CSV line for the Procedures table.
func (p Procedure) Row(id int64, patientID, fileInfo string) string {
	return export.Join(
		export.Int(id),
		export.String(patientID),
		export.String(fileInfo),
		export.String(p.Name),
		export.Date(p.StartDate),
	)
}

// VitalsReading is one set of vital sign measurements taken at StartDate.
// Measures are stored in US customary units; zero doubles as the "not
// present" sentinel, so a legitimately-zero reading renders the same as an
// absent one. That ambiguity is inherited from the source data and kept for
// output compatibility.
type VitalsReading struct {
	StartDate    time.Time
	WeightLbs    float64
	HeightInches float64
	TemperatureF float64
	SystolicBP   float64
	DiastolicBP  float64
	HeartRate    float64
}

// Empty reports whether the reading carries no observation date.
func (v VitalsReading) Empty() bool {
	return v.StartDate.IsZero()
}

// WeightGrams converts the stored weight to grams.
func (v VitalsReading) WeightGrams() float64 {
	return v.WeightLbs * GramsPerPound
}

// HeightCm converts the stored height to centimeters.
func (v VitalsReading) HeightCm() float64 {
	return v.HeightInches * CentimetersPerInch
}

// TemperatureC converts the stored temperature to Celsius.
func (v VitalsReading) TemperatureC() float64 {
	if v.TemperatureF == 0 {
		return 0
	}
	return (v.TemperatureF - 32) / 1.8
}

// Row renders the reading as one CSV line for the Vitals table. Metric
// equivalents are derived here rather than stored on the record.
func (v VitalsReading) Row(id int64, patientID, fileInfo string) string {
	return export.Join(
		export.Int(id),
		export.String(patientID),
		export.String(fileInfo),
		export.Date(v.StartDate),
		export.Number(v.WeightLbs),
		export.Number(v.WeightGrams()),
		export.Number(v.HeightInches),
		export.Number(v.HeightCm()),
		export.Number(v.TemperatureF),
		export.Number(v.TemperatureC()),
		export.Number(v.SystolicBP),
		export.Number(v.DiastolicBP),
		export.Number(v.HeartRate),
	)
}

// ReportRow is one line of the per-run Report table: the outcome of a single
// input file together with how many records each category contributed.
type ReportRow struct {
	FileName   string
	Result     string
	Allergies  int
	Medication int
	Problems   int
	Procedures int
	Vitals     int
}

// Row renders the report line. The sequence identifier comes from the report
// table counter, which advances once per input file regardless of outcome.
func (r ReportRow) Row(id int64) string {
	return export.Join(
		export.Int(id),
		export.String(r.FileName),
		export.String(r.Result),
		export.Count(r.Allergies),
		export.Count(r.Medication),
		export.Count(r.Problems),
		export.Count(r.Procedures),
		export.Count(r.Vitals),
	)
}
