package ccda

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ehr/ccda-export/internal/domain/records"
)

// FilePrefix is the literal token leading every input file name. The patient
// identifier sits between this prefix and the first underscore; the file info
// token sits between the first underscore and the first dot:
//
//	ccd<patientId>_<fileInfo>.xml
const FilePrefix = "ccd"

// Document is the extraction outcome for one input file: patient identity
// derived from the file name, the document title, and one record list per
// clinical category. A Document with a non-nil Err carries no records and its
// source file belongs in the error area.
type Document struct {
	FileName    string
	PatientID   string
	FileInfo    string
	PatientName string

	Allergies   []records.Allergy
	Medications []records.Medication
	Problems    []records.Problem
	Procedures  []records.Procedure
	Vitals      []records.VitalsReading

	Err error
}

// Loaded reports whether the document was parsed and extracted successfully.
func (d *Document) Loaded() bool {
	return d.Err == nil
}

// Extractor maps C-CDA documents to Documents. It holds no state and is safe
// to reuse across files.
type Extractor struct{}

// NewExtractor creates a new extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractFile loads and extracts one document from disk. Failures of any
// kind are recorded on the returned Document rather than returned; the
// caller decides what to do with a failed file.
func (e *Extractor) ExtractFile(path string) *Document {
	doc := newDocument(filepath.Base(path))

	data, err := os.ReadFile(path)
	if err != nil {
		doc.Err = fmt.Errorf("ccda: read %s: %w", doc.FileName, err)
		return doc
	}
	e.extract(doc, data)
	return doc
}

// Extract parses raw document bytes. The file name is still required because
// patient identity derives from it, not from the document body.
func (e *Extractor) Extract(data []byte, fileName string) *Document {
	doc := newDocument(fileName)
	e.extract(doc, data)
	return doc
}

func newDocument(fileName string) *Document {
	doc := &Document{FileName: fileName}
	doc.PatientID, doc.FileInfo = parseFileName(fileName)
	return doc
}

func (e *Extractor) extract(doc *Document, data []byte) {
	var cd ClinicalDocument
	if err := xml.Unmarshal(data, &cd); err != nil {
		doc.Err = fmt.Errorf("ccda: parse %s: %w", doc.FileName, err)
		return
	}

	// The title element doubles as the namespace probe: a document outside
	// urn:hl7-org:v3 fails unmarshalling above, and a namespaced document
	// without a title is not a usable clinical document either.
	if strings.TrimSpace(cd.Title) == "" {
		doc.Err = fmt.Errorf("ccda: %s: document title missing under namespace %s", doc.FileName, CDANamespace)
		return
	}
	doc.PatientName = cd.Title

	var body *StructuredBody
	if cd.Component != nil {
		body = cd.Component.StructuredBody
	}

	if sec := findSection(body, LOINCAllergies, TitleAllergies); sec != nil {
		doc.Allergies = extractAllergies(sec)
	}
	if sec := findSection(body, LOINCMedications, TitleMedications); sec != nil {
		doc.Medications = extractMedications(sec)
	}
	if sec := findSection(body, LOINCProblems, TitleProblems); sec != nil {
		doc.Problems = extractProblems(sec)
	}
	if sec := findSection(body, LOINCProcedures, TitleProcedures); sec != nil {
		doc.Procedures = extractProcedures(sec)
	}
	if sec := findSection(body, LOINCVitalSigns, TitleVitalSigns); sec != nil {
		doc.Vitals = extractVitals(sec)
	}
}

// parseFileName derives the patient identifier and file info token from the
// input file name. Missing delimiters degrade to empty tokens.
func parseFileName(name string) (patientID, fileInfo string) {
	rest := name
	if len(name) >= len(FilePrefix) && strings.EqualFold(name[:len(FilePrefix)], FilePrefix) {
		rest = name[len(FilePrefix):]
	}

	u := strings.IndexByte(rest, '_')
	if u < 0 {
		return "", ""
	}
	patientID = rest[:u]

	after := rest[u+1:]
	if d := strings.IndexByte(after, '.'); d >= 0 {
		fileInfo = after[:d]
	} else {
		fileInfo = after
	}
	return patientID, fileInfo
}

// findSection walks the structured body, including nested sub-sections, for
// the section whose code matches. The title is then verified against the
// expected value; a code match with the wrong title is treated as not found.
func findSection(body *StructuredBody, code, title string) *Section {
	if body == nil {
		return nil
	}
	sec := findSectionIn(body.Components, code)
	if sec == nil || sec.Title != title {
		return nil
	}
	return sec
}

func findSectionIn(components []SectionComponent, code string) *Section {
	for _, comp := range components {
		if comp.Section == nil {
			continue
		}
		if comp.Section.Code != nil && comp.Section.Code.Code == code {
			return comp.Section
		}
		if sec := findSectionIn(comp.Section.Components, code); sec != nil {
			return sec
		}
	}
	return nil
}

// ---- Category extraction ----

func extractAllergies(sec *Section) []records.Allergy {
	var out []records.Allergy
	for _, entry := range sec.Entries {
		act := entry.Act
		if act == nil {
			continue
		}
		// Only active allergy concerns are exported.
		if codeOf(act.StatusCode) != "active" {
			continue
		}

		rec := records.Allergy{
			Status:    codeOf(act.StatusCode),
			StartDate: parseDate(rangeLow(act.EffectiveTime)),
		}

		if obs := firstObservation(act.EntryRelationships); obs != nil {
			rec.Name = substanceName(obs)
			rec.Reaction = reactionName(obs)
		}
		out = append(out, rec)
	}
	return out
}

// substanceName reads the allergen from the observation's participant,
// falling back to the coded value's display name.
func substanceName(obs *ObservationEntry) string {
	if obs.Participant != nil && obs.Participant.ParticipantRole != nil {
		if pe := obs.Participant.ParticipantRole.PlayingEntity; pe != nil && pe.Name != "" {
			return pe.Name
		}
	}
	if obs.Value != nil {
		return obs.Value.DisplayName
	}
	return ""
}

// reactionName finds the manifestation observation nested under the allergy
// observation.
func reactionName(obs *ObservationEntry) string {
	for _, er := range obs.EntryRelationships {
		if er.TypeCode != "MFST" || er.Observation == nil {
			continue
		}
		if er.Observation.Value != nil {
			return er.Observation.Value.DisplayName
		}
	}
	return ""
}

func extractMedications(sec *Section) []records.Medication {
	sigs := sigIndex(sec)

	var out []records.Medication
	for _, entry := range sec.Entries {
		sa := entry.SubstanceAdministration
		if sa == nil {
			continue
		}

		endDate := parseDate(rangeHigh(sa.EffectiveTime))

		// The document's own status code is not trusted: an order with no
		// end date is active, anything else is completed. Only active
		// orders are exported.
		if !endDate.IsZero() {
			continue
		}

		rec := records.Medication{
			Status:     "active",
			StartDate:  parseDate(rangeLow(sa.EffectiveTime)),
			Sig:        lookupSig(sigs, sa.Text),
			Prescriber: authorName(sa.Author),
			DoseForm:   displayOf(sa.AdministrationUnitCode),
			Route:      displayOf(sa.RouteCode),
		}

		if mat := material(sa.Consumable); mat != nil {
			rec.DrugName = mat.Name
			if rec.DrugName == "" {
				rec.DrugName = displayOf(mat.Code)
			}
			rec.DispensableDrugName = translationName(mat.Code)
		}
		rec.Strength, rec.StrengthUnit = SplitStrength(rec.DispensableDrugName)

		if q := supplyQuantity(sa.EntryRelationships); q != nil {
			rec.DispenseAmount = q.Value
			rec.DispenseUnit = stripBraces(q.Unit)
		}

		out = append(out, rec)
	}
	return out
}

// sigIndex builds the lookup table of free-text instruction blocks declared
// in the section narrative, keyed by their content ID.
func sigIndex(sec *Section) map[string]string {
	idx := make(map[string]string)
	if sec.Text == nil {
		return idx
	}
	for _, c := range sec.Text.Contents {
		if c.ID != "" {
			idx[c.ID] = strings.TrimSpace(c.Text)
		}
	}
	return idx
}

// lookupSig resolves an entry's "#sig-N" narrative reference. A missing or
// malformed reference yields an empty SIG.
func lookupSig(idx map[string]string, text *EntryText) string {
	if text == nil || text.Reference == nil {
		return ""
	}
	key := strings.TrimPrefix(text.Reference.Value, "#")
	return idx[key]
}

func authorName(a *Author) string {
	if a == nil || a.AssignedAuthor == nil || a.AssignedAuthor.AssignedPerson == nil {
		return ""
	}
	name := a.AssignedAuthor.AssignedPerson.Name
	if name == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	if name.Given != "" {
		parts = append(parts, name.Given)
	}
	if name.Family != "" {
		parts = append(parts, name.Family)
	}
	return strings.Join(parts, " ")
}

func material(c *Consumable) *ManufacturedMaterial {
	if c == nil || c.ManufacturedProduct == nil {
		return nil
	}
	return c.ManufacturedProduct.ManufacturedMaterial
}

// translationName reads the dispensable drug name from the material code's
// first translation.
func translationName(c *Code) string {
	if c == nil || len(c.Translations) == 0 {
		return ""
	}
	return c.Translations[0].DisplayName
}

func supplyQuantity(ers []EntryRelationship) *Value {
	for _, er := range ers {
		if er.Supply != nil && er.Supply.Quantity != nil {
			return er.Supply.Quantity
		}
	}
	return nil
}

// stripBraces removes the enclosing braces from units like "{tablet}".
func stripBraces(unit string) string {
	if strings.HasPrefix(unit, "{") && strings.HasSuffix(unit, "}") && len(unit) >= 2 {
		return unit[1 : len(unit)-1]
	}
	return unit
}

func extractProblems(sec *Section) []records.Problem {
	var out []records.Problem
	for _, entry := range sec.Entries {
		act := entry.Act
		if act == nil {
			continue
		}
		rec := records.Problem{
			Status:    codeOf(act.StatusCode),
			StartDate: parseDate(rangeLow(act.EffectiveTime)),
		}
		if obs := firstObservation(act.EntryRelationships); obs != nil && obs.Value != nil {
			rec.Name = obs.Value.DisplayName
		}
		out = append(out, rec)
	}
	return out
}

func extractProcedures(sec *Section) []records.Procedure {
	var out []records.Procedure
	for _, entry := range sec.Entries {
		proc := entry.Procedure
		if proc == nil {
			continue
		}
		out = append(out, records.Procedure{
			Name:      displayOf(proc.Code),
			StartDate: parseDate(rangePoint(proc.EffectiveTime)),
		})
	}
	return out
}

// vitalCodes maps each vital sign observation code to the field it fills.
var vitalCodes = map[string]func(*records.VitalsReading, float64){
	LOINCBodyWeight:  func(v *records.VitalsReading, f float64) { v.WeightLbs = f },
	LOINCBodyHeight:  func(v *records.VitalsReading, f float64) { v.HeightInches = f },
	LOINCTemperature: func(v *records.VitalsReading, f float64) { v.TemperatureF = f },
	LOINCSystolicBP:  func(v *records.VitalsReading, f float64) { v.SystolicBP = f },
	LOINCDiastolicBP: func(v *records.VitalsReading, f float64) { v.DiastolicBP = f },
	LOINCHeartRate:   func(v *records.VitalsReading, f float64) { v.HeartRate = f },
}

func extractVitals(sec *Section) []records.VitalsReading {
	var out []records.VitalsReading
	for _, entry := range sec.Entries {
		org := entry.Organizer
		if org == nil {
			continue
		}
		rec := records.VitalsReading{
			StartDate: parseDate(rangePoint(org.EffectiveTime)),
		}
		for _, comp := range org.Components {
			obs := comp.Observation
			if obs == nil || obs.Code == nil || obs.Value == nil {
				continue
			}
			set, ok := vitalCodes[obs.Code.Code]
			if !ok {
				continue
			}
			set(&rec, parseMeasure(obs.Value.Value))
		}
		out = append(out, rec)
	}
	return out
}

// parseMeasure converts an observation value attribute to a float; anything
// unparsable is the zero sentinel.
func parseMeasure(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// ---- Optional navigation helpers ----
//
// Every lookup below is total: a nil anywhere on the path yields the zero
// value, so category rules stay simple predicates over fully defaulted
// records.

func codeOf(c *Code) string {
	if c == nil {
		return ""
	}
	return c.Code
}

func displayOf(c *Code) string {
	if c == nil {
		return ""
	}
	return c.DisplayName
}

func firstObservation(ers []EntryRelationship) *ObservationEntry {
	for _, er := range ers {
		if er.Observation != nil {
			return er.Observation
		}
	}
	return nil
}

func rangeLow(t *TimeRange) string {
	if t == nil || t.Low == nil {
		return ""
	}
	return t.Low.Value
}

func rangeHigh(t *TimeRange) string {
	if t == nil || t.High == nil {
		return ""
	}
	return t.High.Value
}

// rangePoint reads a point-in-time effectiveTime, falling back to the low
// boundary when the document uses an interval.
func rangePoint(t *TimeRange) string {
	if t == nil {
		return ""
	}
	if t.Value != "" {
		return t.Value
	}
	return rangeLow(t)
}

// parseDate reads the 8-character YYYYMMDD prefix of an HL7 time stamp.
// Malformed or missing values map to the zero time, never an error.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if len(s) < 8 {
		return time.Time{}
	}
	t, err := time.Parse("20060102", s[:8])
	if err != nil {
		return time.Time{}
	}
	return t
}
