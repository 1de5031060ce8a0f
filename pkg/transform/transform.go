package transform

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/extract"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Result holds everything derived from one raw report.
type Result struct {
	Report    *models.ReportRecord
	Drugs     []models.DrugFact
	Reactions []models.ReactionFact
	Events    []errors.ValidationEvent
}

// BatchResult aggregates per-report results in input order.
type BatchResult struct {
	Reports   []models.ReportRecord
	Drugs     []models.DrugFact
	Reactions []models.ReactionFact
	Events    []errors.ValidationEvent
}

// Transformer normalizes raw adverse event reports into the three
// output families. Transformation is pure per-report work: no state is
// shared between records, so one bad report never poisons its batch.
type Transformer struct {
	evaluator   *extract.Evaluator
	concurrency int
	logger      ectologger.Logger
}

// New creates a Transformer.
func New(concurrency int, logger ectologger.Logger) *Transformer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Transformer{
		evaluator:   extract.NewEvaluator(),
		concurrency: concurrency,
		logger:      logger,
	}
}

// TransformReport normalizes one raw report. A missing safety report id
// skips the whole report with a validation event; a reaction without a
// MedDRA term drops just that fact.
func (t *Transformer) TransformReport(report models.RawReport) *Result {
	result := &Result{}

	id := extract.AsString(report["safetyreportid"])
	if id == "" {
		result.Events = append(result.Events, errors.ValidationEvent{
			Family: models.FamilyReports,
			Field:  "safetyreportid",
			Reason: "missing safety report id",
		})
		metrics.RecordTransform("skipped")
		metrics.RecordValidationEvent(models.FamilyReports)
		t.logger.Debugf("Skipping report with missing safety report id")
		return result
	}

	result.Report = t.buildReportRecord(id, report)
	result.Drugs = t.buildDrugFacts(id, report)
	result.Reactions, result.Events = t.buildReactionFacts(id, report, result.Events)

	metrics.RecordTransform("success")
	return result
}

// TransformBatch normalizes a batch with per-report workers, preserving
// input order in the aggregated output.
func (t *Transformer) TransformBatch(ctx context.Context, reports []models.RawReport) *BatchResult {
	ctx, span := tracing.StartSpan(ctx, "transform.TransformBatch")
	defer span.End()

	if len(reports) == 0 {
		return &BatchResult{}
	}

	concurrency := t.concurrency
	if concurrency > len(reports) {
		concurrency = len(reports)
	}

	type indexedReport struct {
		index  int
		report models.RawReport
	}

	itemChan := make(chan indexedReport)
	results := make([]*Result, len(reports))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemChan {
				results[item.index] = t.TransformReport(item.report)
			}
		}()
	}

	for i, report := range reports {
		select {
		case <-ctx.Done():
			// Drain gracefully; untransformed slots stay nil
			close(itemChan)
			wg.Wait()
			return t.aggregate(results)
		case itemChan <- indexedReport{index: i, report: report}:
		}
	}
	close(itemChan)
	wg.Wait()

	return t.aggregate(results)
}

func (t *Transformer) aggregate(results []*Result) *BatchResult {
	batch := &BatchResult{}
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Report != nil {
			batch.Reports = append(batch.Reports, *r.Report)
		}
		batch.Drugs = append(batch.Drugs, r.Drugs...)
		batch.Reactions = append(batch.Reactions, r.Reactions...)
		batch.Events = append(batch.Events, r.Events...)
	}
	return batch
}

// buildReportRecord flattens the per-report dimension fields.
func (t *Transformer) buildReportRecord(id string, report models.RawReport) *models.ReportRecord {
	record := &models.ReportRecord{
		SafetyReportID: id,
		ReceiveDate:    parseDate(extract.AsString(report["receivedate"])),
		Serious:        normalizeFlag(report["serious"]),
		OccurCountry:   extract.AsString(report["occurcountry"]),
	}

	record.SeriousnessDeath = normalizeFlag(report["seriousnessdeath"])
	record.SeriousnessHospital = normalizeFlag(report["seriousnesshospitalization"])
	record.SeriousnessLifeThreat = normalizeFlag(report["seriousnesslifethreatening"])
	record.SeriousnessDisabling = normalizeFlag(report["seriousnessdisabling"])
	record.SeriousnessCongenital = normalizeFlag(report["seriousnesscongenitalanomali"])
	record.SeriousnessOther = normalizeFlag(report["seriousnessother"])

	qualification, _ := t.evaluator.EvaluateString("primarysource.qualification", report)
	record.Qualification = qualification

	sex, _ := t.evaluator.Evaluate("patient.patientsex", report)
	record.PatientSex = extract.AsString(sex)

	age, _ := t.evaluator.Evaluate("patient.patientonsetage", report)
	record.PatientAge = extract.AsString(age)
	ageUnit, _ := t.evaluator.Evaluate("patient.patientonsetageunit", report)
	record.PatientAgeUnit = extract.AsString(ageUnit)

	weight, _ := t.evaluator.Evaluate("patient.patientweight", report)
	record.PatientWeight = parseWeight(weight)

	return record
}

// drug name candidates resolve from the curated openfda annotations
// first, falling back to the verbatim product name.
func (t *Transformer) buildDrugFacts(id string, report models.RawReport) []models.DrugFact {
	drugs, err := t.evaluator.EvaluateSlice("patient.drug", report)
	if err != nil || len(drugs) == 0 {
		return nil
	}

	facts := make([]models.DrugFact, 0, len(drugs))
	for i, d := range drugs {
		drug, ok := d.(map[string]any)
		if !ok {
			continue
		}

		fact := models.DrugFact{
			SafetyReportID:       id,
			Seq:                  i + 1,
			DrugCharacterization: extract.AsString(drug["drugcharacterization"]),
			MedicinalProduct:     extract.AsString(drug["medicinalproduct"]),
			DrugIndication:       extract.AsString(drug["drugindication"]),
		}

		generics, _ := t.evaluator.EvaluateSlice("openfda.generic_name", drug)
		fact.GenericName = extract.FirstNonEmpty(generics)

		brands, _ := t.evaluator.EvaluateSlice("openfda.brand_name", drug)
		fact.BrandName = extract.FirstNonEmpty(brands)

		manufacturers, _ := t.evaluator.EvaluateSlice("openfda.manufacturer_name", drug)
		fact.ManufacturerName = extract.FirstNonEmpty(manufacturers)

		classes, _ := t.evaluator.EvaluateSlice("openfda.pharm_class_epc", drug)
		fact.PharmClassEPC = extract.FirstNonEmpty(classes)

		facts = append(facts, fact)
	}

	return facts
}

// buildReactionFacts explodes the reaction list. The MedDRA term is the
// fact's identity, so a reaction without one is dropped with an event
// while its siblings survive.
func (t *Transformer) buildReactionFacts(id string, report models.RawReport, events []errors.ValidationEvent) ([]models.ReactionFact, []errors.ValidationEvent) {
	reactions, err := t.evaluator.EvaluateSlice("patient.reaction", report)
	if err != nil || len(reactions) == 0 {
		return nil, events
	}

	facts := make([]models.ReactionFact, 0, len(reactions))
	for i, r := range reactions {
		reaction, ok := r.(map[string]any)
		if !ok {
			continue
		}

		term := extract.AsString(reaction["reactionmeddrapt"])
		if term == "" {
			events = append(events, errors.ValidationEvent{
				SafetyReportID: id,
				Family:         models.FamilyReactionFacts,
				Field:          "reactionmeddrapt",
				Reason:         "missing reaction term",
			})
			metrics.RecordValidationEvent(models.FamilyReactionFacts)
			continue
		}

		facts = append(facts, models.ReactionFact{
			SafetyReportID:  id,
			Seq:             i + 1,
			ReactionMedDRA:  term,
			ReactionOutcome: extract.AsString(reaction["reactionoutcome"]),
		})
	}

	return facts, events
}

// parseDate parses the provider's yyyymmdd encoding.
func parseDate(s string) *time.Time {
	if len(s) != 8 {
		return nil
	}
	parsed, err := time.Parse("20060102", s)
	if err != nil {
		return nil
	}
	return &parsed
}

// normalizeFlag coerces seriousness flags to single-character codes.
func normalizeFlag(v any) string {
	s := extract.AsString(v)
	switch s {
	case "1", "2":
		return s
	case "":
		return ""
	default:
		// Some historical records carry "Yes"/"No" style values
		switch s {
		case "Yes", "yes", "Y":
			return "1"
		case "No", "no", "N":
			return "2"
		}
		return s
	}
}

// parseWeight parses the patient weight in kilograms.
func parseWeight(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		if t == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}
