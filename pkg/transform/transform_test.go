package transform

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/models"
)

func nopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func sampleReport(id string) models.RawReport {
	return models.RawReport{
		"safetyreportid": id,
		"receivedate":    "20240601",
		"serious":        "1",
		"occurcountry":   "US",
		"primarysource": map[string]any{
			"qualification": "1",
		},
		"patient": map[string]any{
			"patientsex":          "2",
			"patientonsetage":     float64(56),
			"patientonsetageunit": "801",
			"patientweight":       "72.5",
			"drug": []any{
				map[string]any{
					"drugcharacterization": "1",
					"medicinalproduct":     "TYLENOL",
					"drugindication":       "HEADACHE",
					"openfda": map[string]any{
						"generic_name":      []any{"", "Acetaminophen", "APAP"},
						"brand_name":        []any{"Tylenol"},
						"manufacturer_name": []any{"Johnson & Johnson"},
						"pharm_class_epc":   []any{"Analgesic [EPC]"},
					},
				},
			},
			"reaction": []any{
				map[string]any{
					"reactionmeddrapt": "Nausea",
					"reactionoutcome":  "1",
				},
			},
		},
	}
}

func TestTransformReportFlattensDimension(t *testing.T) {
	tr := New(1, nopLogger())

	result := tr.TransformReport(sampleReport("10003301"))

	assert.NotNil(t, result.Report)
	assert.Equal(t, "10003301", result.Report.SafetyReportID)
	assert.Equal(t, "1", result.Report.Serious)
	assert.Equal(t, "US", result.Report.OccurCountry)
	assert.Equal(t, "1", result.Report.Qualification)
	assert.Equal(t, "2", result.Report.PatientSex)
	assert.Equal(t, "56", result.Report.PatientAge)
	assert.Equal(t, "801", result.Report.PatientAgeUnit)

	assert.NotNil(t, result.Report.ReceiveDate)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *result.Report.ReceiveDate)

	assert.NotNil(t, result.Report.PatientWeight)
	assert.Equal(t, 72.5, *result.Report.PatientWeight)

	assert.Empty(t, result.Events)
}

func TestTransformReportDrugNameResolution(t *testing.T) {
	tr := New(1, nopLogger())

	result := tr.TransformReport(sampleReport("10003301"))

	assert.Len(t, result.Drugs, 1)
	drug := result.Drugs[0]
	assert.Equal(t, "10003301", drug.SafetyReportID)
	assert.Equal(t, 1, drug.Seq)
	assert.Equal(t, "1", drug.DrugCharacterization)
	assert.Equal(t, "TYLENOL", drug.MedicinalProduct)
	// First non-empty candidate wins, earlier empty strings are skipped
	assert.Equal(t, "Acetaminophen", drug.GenericName)
	assert.Equal(t, "Tylenol", drug.BrandName)
	assert.Equal(t, "Johnson & Johnson", drug.ManufacturerName)
	assert.Equal(t, "Analgesic [EPC]", drug.PharmClassEPC)
}

func TestTransformReportDrugWithoutOpenFDA(t *testing.T) {
	tr := New(1, nopLogger())

	report := models.RawReport{
		"safetyreportid": "555",
		"patient": map[string]any{
			"drug": []any{
				map[string]any{
					"medicinalproduct": "ASPIRIN",
				},
			},
		},
	}

	result := tr.TransformReport(report)
	assert.Len(t, result.Drugs, 1)
	assert.Equal(t, "ASPIRIN", result.Drugs[0].MedicinalProduct)
	assert.Empty(t, result.Drugs[0].GenericName)
}

func TestTransformReportMissingIDSkipsWithEvent(t *testing.T) {
	tr := New(1, nopLogger())

	report := sampleReport("10003301")
	delete(report, "safetyreportid")

	result := tr.TransformReport(report)

	assert.Nil(t, result.Report)
	assert.Empty(t, result.Drugs)
	assert.Empty(t, result.Reactions)
	assert.Len(t, result.Events, 1)
	assert.Equal(t, models.FamilyReports, result.Events[0].Family)
	assert.Equal(t, "safetyreportid", result.Events[0].Field)
}

func TestTransformReportReactionMissingTermDropped(t *testing.T) {
	tr := New(1, nopLogger())

	report := sampleReport("10003301")
	patient := report["patient"].(map[string]any)
	patient["reaction"] = []any{
		map[string]any{"reactionmeddrapt": "Nausea", "reactionoutcome": "1"},
		map[string]any{"reactionoutcome": "6"},
		map[string]any{"reactionmeddrapt": "Headache"},
	}

	result := tr.TransformReport(report)

	// Siblings survive, only the term-less fact is dropped
	assert.Len(t, result.Reactions, 2)
	assert.Equal(t, "Nausea", result.Reactions[0].ReactionMedDRA)
	assert.Equal(t, "Headache", result.Reactions[1].ReactionMedDRA)
	assert.Len(t, result.Events, 1)
	assert.Equal(t, models.FamilyReactionFacts, result.Events[0].Family)
	assert.Equal(t, "10003301", result.Events[0].SafetyReportID)
}

func TestTransformBatchIsolatesInvalidReports(t *testing.T) {
	tr := New(4, nopLogger())

	reports := make([]models.RawReport, 0, 5)
	for i := 1; i <= 5; i++ {
		r := sampleReport(fmt.Sprintf("100%d", i))
		if i == 3 {
			delete(r, "safetyreportid")
		}
		reports = append(reports, r)
	}

	batch := tr.TransformBatch(context.Background(), reports)

	assert.Len(t, batch.Reports, 4)
	assert.Len(t, batch.Drugs, 4)
	assert.Len(t, batch.Reactions, 4)
	assert.Len(t, batch.Events, 1)
	assert.Equal(t, models.FamilyReports, batch.Events[0].Family)

	// Output preserves input order
	assert.Equal(t, "1001", batch.Reports[0].SafetyReportID)
	assert.Equal(t, "1005", batch.Reports[3].SafetyReportID)
}

func TestTransformFamiliesShareSafetyReportID(t *testing.T) {
	tr := New(1, nopLogger())

	result := tr.TransformReport(sampleReport("777"))

	assert.Equal(t, "777", result.Report.SafetyReportID)
	assert.Equal(t, "777", result.Drugs[0].SafetyReportID)
	assert.Equal(t, "777", result.Reactions[0].SafetyReportID)
}

func TestTransformReportNumericFieldsCoerced(t *testing.T) {
	tr := New(1, nopLogger())

	report := models.RawReport{
		"safetyreportid": float64(12345),
		"serious":        float64(1),
		"patient": map[string]any{
			"patientweight": float64(80),
		},
	}

	result := tr.TransformReport(report)
	assert.Equal(t, "12345", result.Report.SafetyReportID)
	assert.Equal(t, "1", result.Report.Serious)
	assert.Equal(t, 80.0, *result.Report.PatientWeight)
}

func TestParseDate(t *testing.T) {
	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("2024"))
	assert.Nil(t, parseDate("20241301"))

	parsed := parseDate("20040101")
	assert.NotNil(t, parsed)
	assert.Equal(t, 2004, parsed.Year())
}

func TestNormalizeFlag(t *testing.T) {
	assert.Equal(t, "1", normalizeFlag("1"))
	assert.Equal(t, "2", normalizeFlag("2"))
	assert.Equal(t, "1", normalizeFlag("Yes"))
	assert.Equal(t, "2", normalizeFlag("No"))
	assert.Equal(t, "", normalizeFlag(nil))
	assert.Equal(t, "1", normalizeFlag(float64(1)))
}
