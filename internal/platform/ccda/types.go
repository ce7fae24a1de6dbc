// Package ccda reads C-CDA R2 clinical documents and extracts the typed
// records that feed the CSV export tables.
package ccda

import "encoding/xml"

// CDA namespace and the LOINC codes identifying the sections and vital sign
// observations this extractor consumes.
const (
	CDANamespace = "urn:hl7-org:v3"

	// Section codes
	LOINCAllergies   = "48765-2"
	LOINCMedications = "10160-0"
	LOINCProblems    = "11450-4"
	LOINCProcedures  = "47519-4"
	LOINCVitalSigns  = "8716-3"

	// Vital sign observation codes
	LOINCBodyWeight  = "3141-9"
	LOINCBodyHeight  = "8302-2"
	LOINCTemperature = "8310-5"
	LOINCSystolicBP  = "8480-6"
	LOINCDiastolicBP = "8462-4"
	LOINCHeartRate   = "8867-4"
)

// Expected section titles. Section codes are matched first; the title is then
// verified as a guard against documents that reuse a code for unrelated
// content.
const (
	TitleAllergies   = "Allergies"
	TitleMedications = "Medications"
	TitleProblems    = "Problems"
	TitleProcedures  = "Procedures"
	TitleVitalSigns  = "Vital Signs"
)

// ClinicalDocument is the root element of a CDA R2 document. Unmarshalling
// requires the urn:hl7-org:v3 namespace; a document in the wrong namespace
// fails to parse.
type ClinicalDocument struct {
	XMLName       xml.Name   `xml:"urn:hl7-org:v3 ClinicalDocument"`
	Title         string     `xml:"title"`
	EffectiveTime *TimeValue `xml:"effectiveTime"`
	Component     *Component `xml:"component"`
}

// Code represents a coded value with optional code system and translations.
type Code struct {
	Code         string `xml:"code,attr"`
	CodeSystem   string `xml:"codeSystem,attr"`
	DisplayName  string `xml:"displayName,attr"`
	Translations []Code `xml:"translation"`
}

// TimeValue holds a point-in-time stamp in HL7 format (YYYYMMDD prefix).
type TimeValue struct {
	Value string `xml:"value,attr"`
}

// TimeRange represents an effectiveTime that may carry a point value or a
// low/high interval.
type TimeRange struct {
	Value string     `xml:"value,attr"`
	Low   *TimeValue `xml:"low"`
	High  *TimeValue `xml:"high"`
}

// Component wraps the structured body of the document.
type Component struct {
	StructuredBody *StructuredBody `xml:"structuredBody"`
}

// StructuredBody holds the document sections.
type StructuredBody struct {
	Components []SectionComponent `xml:"component"`
}

// SectionComponent wraps a single section.
type SectionComponent struct {
	Section *Section `xml:"section"`
}

// Section is a CDA section. Sections may nest further sections through their
// own component elements, so lookups walk the tree rather than one level.
type Section struct {
	Code       *Code              `xml:"code"`
	Title      string             `xml:"title"`
	Text       *Narrative         `xml:"text"`
	Entries    []Entry            `xml:"entry"`
	Components []SectionComponent `xml:"component"`
}

// Narrative is the human-readable block of a section. Medication SIG text
// lives here as content elements addressed by ID from the entries.
type Narrative struct {
	Contents []NarrativeContent `xml:"content"`
}

// NarrativeContent is one addressable free-text block within a narrative.
type NarrativeContent struct {
	ID   string `xml:"ID,attr"`
	Text string `xml:",chardata"`
}

// Entry is a repeating unit within a section holding one clinical fact.
type Entry struct {
	Act                     *Act                     `xml:"act"`
	Organizer               *Organizer               `xml:"organizer"`
	SubstanceAdministration *SubstanceAdministration `xml:"substanceAdministration"`
	Procedure               *ProcedureEntry          `xml:"procedure"`
}

// Act represents a CDA act element (allergy and problem concerns).
type Act struct {
	Code               *Code               `xml:"code"`
	StatusCode         *Code               `xml:"statusCode"`
	EffectiveTime      *TimeRange          `xml:"effectiveTime"`
	EntryRelationships []EntryRelationship `xml:"entryRelationship"`
}

// EntryRelationship links entries to nested observations or supplies.
type EntryRelationship struct {
	TypeCode    string            `xml:"typeCode,attr"`
	Observation *ObservationEntry `xml:"observation"`
	Supply      *Supply           `xml:"supply"`
}

// ObservationEntry represents a CDA observation.
type ObservationEntry struct {
	Code               *Code               `xml:"code"`
	StatusCode         *Code               `xml:"statusCode"`
	EffectiveTime      *TimeRange          `xml:"effectiveTime"`
	Value              *Value              `xml:"value"`
	Participant        *Participant        `xml:"participant"`
	EntryRelationships []EntryRelationship `xml:"entryRelationship"`
}

// Value represents a typed observation value (physical quantity or coded).
type Value struct {
	Value       string `xml:"value,attr"`
	Unit        string `xml:"unit,attr"`
	Code        string `xml:"code,attr"`
	DisplayName string `xml:"displayName,attr"`
}

// Participant links an entry to a participating entity, e.g. the substance
// an allergy concern is about.
type Participant struct {
	TypeCode        string           `xml:"typeCode,attr"`
	ParticipantRole *ParticipantRole `xml:"participantRole"`
}

// ParticipantRole holds participant role information.
type ParticipantRole struct {
	PlayingEntity *PlayingEntity `xml:"playingEntity"`
}

// PlayingEntity holds an entity name and code.
type PlayingEntity struct {
	Code *Code  `xml:"code"`
	Name string `xml:"name"`
}

// SubstanceAdministration represents a medication order entry.
type SubstanceAdministration struct {
	Text                   *EntryText          `xml:"text"`
	StatusCode             *Code               `xml:"statusCode"`
	EffectiveTime          *TimeRange          `xml:"effectiveTime"`
	RouteCode              *Code               `xml:"routeCode"`
	DoseQuantity           *Value              `xml:"doseQuantity"`
	AdministrationUnitCode *Code               `xml:"administrationUnitCode"`
	Consumable             *Consumable         `xml:"consumable"`
	Author                 *Author             `xml:"author"`
	EntryRelationships     []EntryRelationship `xml:"entryRelationship"`
}

// EntryText carries the reference from an entry into the section narrative.
type EntryText struct {
	Reference *Reference `xml:"reference"`
}

// Reference addresses a narrative content block, e.g. "#sig-1".
type Reference struct {
	Value string `xml:"value,attr"`
}

// Author identifies who recorded an entry.
type Author struct {
	Time           *TimeValue      `xml:"time"`
	AssignedAuthor *AssignedAuthor `xml:"assignedAuthor"`
}

// AssignedAuthor identifies the authoring person.
type AssignedAuthor struct {
	AssignedPerson *AssignedPerson `xml:"assignedPerson"`
}

// AssignedPerson holds the author's name parts.
type AssignedPerson struct {
	Name *PersonName `xml:"name"`
}

// PersonName represents a person's name.
type PersonName struct {
	Given  string `xml:"given"`
	Family string `xml:"family"`
}

// Consumable wraps a manufactured product (medication).
type Consumable struct {
	ManufacturedProduct *ManufacturedProduct `xml:"manufacturedProduct"`
}

// ManufacturedProduct holds a medication material.
type ManufacturedProduct struct {
	ManufacturedMaterial *ManufacturedMaterial `xml:"manufacturedMaterial"`
}

// ManufacturedMaterial holds the medication code and free-text name.
type ManufacturedMaterial struct {
	Code *Code  `xml:"code"`
	Name string `xml:"name"`
}

// Supply represents a dispense entry related to a medication order.
type Supply struct {
	Quantity *Value `xml:"quantity"`
}

// Organizer groups related observations (one vital signs reading).
type Organizer struct {
	Code          *Code                `xml:"code"`
	StatusCode    *Code                `xml:"statusCode"`
	EffectiveTime *TimeRange           `xml:"effectiveTime"`
	Components    []OrganizerComponent `xml:"component"`
}

// OrganizerComponent wraps an observation inside an organizer.
type OrganizerComponent struct {
	Observation *ObservationEntry `xml:"observation"`
}

// ProcedureEntry represents a CDA procedure.
type ProcedureEntry struct {
	Code          *Code      `xml:"code"`
	StatusCode    *Code      `xml:"statusCode"`
	EffectiveTime *TimeRange `xml:"effectiveTime"`
}
