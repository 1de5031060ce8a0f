package sinks

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	reportsTable   = "adverse_event_reports"
	drugsTable     = "adverse_event_drugs"
	reactionsTable = "adverse_event_reactions"
)

var (
	reportColumns = []string{
		"safety_report_id", "receive_date", "serious",
		"seriousness_death", "seriousness_hospitalization", "seriousness_life_threatening",
		"seriousness_disabling", "seriousness_congenital_anomali", "seriousness_other",
		"occur_country", "qualification",
		"patient_sex", "patient_onset_age", "patient_onset_age_unit", "patient_weight",
	}

	drugColumns = []string{
		"safety_report_id", "seq", "drug_characterization", "medicinal_product",
		"drug_indication", "generic_name", "brand_name", "manufacturer_name", "pharm_class_epc",
	}

	reactionColumns = []string{
		"safety_report_id", "seq", "reaction_meddra_pt", "reaction_outcome",
	}
)

// PostgresSink upserts normalized records into per-family tables. Rows
// are keyed by report identity so re-delivered pages overwrite instead
// of duplicating.
type PostgresSink struct {
	db     database.DB
	logger ectologger.Logger
}

// NewPostgresSink creates a PostgresSink.
func NewPostgresSink(db database.DB, logger ectologger.Logger) *PostgresSink {
	return &PostgresSink{db: db, logger: logger}
}

func (s *PostgresSink) DeliverReports(ctx context.Context, records []models.ReportRecord) error {
	ctx, span := tracing.StartSpan(ctx, "PostgresSink.DeliverReports")
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	ib := database.NewInsertBuilder().InsertInto(reportsTable).Cols(reportColumns...)
	for _, r := range records {
		ib = ib.Values(
			r.SafetyReportID, r.ReceiveDate, r.Serious,
			r.SeriousnessDeath, r.SeriousnessHospital, r.SeriousnessLifeThreat,
			r.SeriousnessDisabling, r.SeriousnessCongenital, r.SeriousnessOther,
			r.OccurCountry, r.Qualification,
			r.PatientSex, r.PatientAge, r.PatientAgeUnit, r.PatientWeight,
		)
	}
	ib.OnConflictUpdate([]string{"safety_report_id"}, reportColumns[1:]...)

	return s.exec(ctx, models.FamilyReports, ib)
}

func (s *PostgresSink) DeliverDrugFacts(ctx context.Context, records []models.DrugFact) error {
	ctx, span := tracing.StartSpan(ctx, "PostgresSink.DeliverDrugFacts")
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	ib := database.NewInsertBuilder().InsertInto(drugsTable).Cols(drugColumns...)
	for _, d := range records {
		ib = ib.Values(
			d.SafetyReportID, d.Seq, d.DrugCharacterization, d.MedicinalProduct,
			d.DrugIndication, d.GenericName, d.BrandName, d.ManufacturerName, d.PharmClassEPC,
		)
	}
	ib.OnConflictUpdate([]string{"safety_report_id", "seq"}, drugColumns[2:]...)

	return s.exec(ctx, models.FamilyDrugFacts, ib)
}

func (s *PostgresSink) DeliverReactionFacts(ctx context.Context, records []models.ReactionFact) error {
	ctx, span := tracing.StartSpan(ctx, "PostgresSink.DeliverReactionFacts")
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	ib := database.NewInsertBuilder().InsertInto(reactionsTable).Cols(reactionColumns...)
	for _, r := range records {
		ib = ib.Values(r.SafetyReportID, r.Seq, r.ReactionMedDRA, r.ReactionOutcome)
	}
	ib.OnConflictUpdate([]string{"safety_report_id", "seq"}, reactionColumns[2:]...)

	return s.exec(ctx, models.FamilyReactionFacts, ib)
}

// exec runs the built upsert. Failures surface as transient so the
// router's retry loop gets a chance before dead-lettering; a connection
// blip should not cost a page of records.
func (s *PostgresSink) exec(ctx context.Context, family string, ib *database.InsertBuilder) error {
	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).Errorf("Upsert failed for family '%s'", family)
		return errors.NewTransientError("postgres sink family '"+family+"'", err)
	}
	return nil
}
