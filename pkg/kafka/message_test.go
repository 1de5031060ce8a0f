package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestReportMessageRoundTrip(t *testing.T) {
	msg := &ReportMessage{
		SafetyReportID: "10003301",
		Stream:         "openfda-drug-events",
		RunID:          "run-1",
		WindowStart:    "20040101",
		WindowEnd:      "20041231",
		FetchedAt:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Report: models.RawReport{
			"safetyreportid": "10003301",
			"serious":        "1",
		},
	}

	data, err := msg.ToJSON()
	assert.NoError(t, err)

	parsed, err := ParseReportMessage(data)
	assert.NoError(t, err)
	assert.Equal(t, "10003301", parsed.SafetyReportID)
	assert.Equal(t, "openfda-drug-events", parsed.Stream)
	assert.Equal(t, "1", parsed.Report["serious"])
}

func TestReportMessageKeyIsSafetyReportID(t *testing.T) {
	msg := &ReportMessage{SafetyReportID: "10003301"}
	assert.Equal(t, "10003301", msg.Key())
}

func TestParseReportMessageAllowsMissingID(t *testing.T) {
	// Invalid reports still travel the bus; validation happens downstream
	msg, err := ParseReportMessage([]byte(`{"stream":"s","report":{}}`))
	assert.NoError(t, err)
	assert.Empty(t, msg.SafetyReportID)
}

func TestParseReportMessageRejectsBadJSON(t *testing.T) {
	_, err := ParseReportMessage([]byte(`{not json`))
	assert.Error(t, err)
}
