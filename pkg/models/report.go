package models

import "time"

// RawReport is a single adverse event report exactly as the provider
// returned it. Reports are duck typed nested JSON whose field presence
// and types vary record to record, so the raw form stays a map and all
// reads go through pkg/extract.
type RawReport = map[string]any

// ReportRecord is the flattened per-report dimension row.
type ReportRecord struct {
	SafetyReportID string `json:"safetyreportid" db:"safety_report_id"`

	// Receive date parsed from the provider's yyyymmdd encoding. Nil when
	// absent or unparseable.
	ReceiveDate *time.Time `json:"receivedate,omitempty" db:"receive_date"`

	// Seriousness flags normalized to single-character codes ("1" set,
	// "2" or "" not set).
	Serious               string `json:"serious,omitempty" db:"serious"`
	SeriousnessDeath      string `json:"seriousnessdeath,omitempty" db:"seriousness_death"`
	SeriousnessHospital   string `json:"seriousnesshospitalization,omitempty" db:"seriousness_hospitalization"`
	SeriousnessLifeThreat string `json:"seriousnesslifethreatening,omitempty" db:"seriousness_life_threatening"`
	SeriousnessDisabling  string `json:"seriousnessdisabling,omitempty" db:"seriousness_disabling"`
	SeriousnessCongenital string `json:"seriousnesscongenitalanomali,omitempty" db:"seriousness_congenital_anomali"`
	SeriousnessOther      string `json:"seriousnessother,omitempty" db:"seriousness_other"`

	OccurCountry  string `json:"occurcountry,omitempty" db:"occur_country"`
	Qualification string `json:"qualification,omitempty" db:"qualification"`

	PatientSex     string   `json:"patientsex,omitempty" db:"patient_sex"`
	PatientAge     string   `json:"patientonsetage,omitempty" db:"patient_onset_age"`
	PatientAgeUnit string   `json:"patientonsetageunit,omitempty" db:"patient_onset_age_unit"`
	PatientWeight  *float64 `json:"patientweight,omitempty" db:"patient_weight"`
}

// DrugFact is one drug entry exploded from a report. Seq preserves the
// drug's position within the report so the (report, seq) pair is a
// stable identity for upserts.
type DrugFact struct {
	SafetyReportID       string `json:"safetyreportid" db:"safety_report_id"`
	Seq                  int    `json:"seq" db:"seq"`
	DrugCharacterization string `json:"drugcharacterization,omitempty" db:"drug_characterization"`
	MedicinalProduct     string `json:"medicinalproduct,omitempty" db:"medicinal_product"`
	DrugIndication       string `json:"drugindication,omitempty" db:"drug_indication"`
	GenericName          string `json:"generic_name,omitempty" db:"generic_name"`
	BrandName            string `json:"brand_name,omitempty" db:"brand_name"`
	ManufacturerName     string `json:"manufacturer_name,omitempty" db:"manufacturer_name"`
	PharmClassEPC        string `json:"pharm_class_epc,omitempty" db:"pharm_class_epc"`
}

// ReactionFact is one reaction entry exploded from a report. The MedDRA
// term is required; facts without it are dropped with a validation
// event.
type ReactionFact struct {
	SafetyReportID  string `json:"safetyreportid" db:"safety_report_id"`
	Seq             int    `json:"seq" db:"seq"`
	ReactionMedDRA  string `json:"reactionmeddrapt" db:"reaction_meddra_pt"`
	ReactionOutcome string `json:"reactionoutcome,omitempty" db:"reaction_outcome"`
}

// Families delivered by the fan-out transformer.
const (
	FamilyReports       = "reports"
	FamilyDrugFacts     = "drug_facts"
	FamilyReactionFacts = "reaction_facts"
)
