package processor

import (
	"context"
	"fmt"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/transform"
)

func nopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeRouter struct {
	batches []*transform.BatchResult
	err     error
}

func (f *fakeRouter) Deliver(_ context.Context, batch *transform.BatchResult) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, batch)
	return nil
}

func envelope(report models.RawReport) *kafka.ReceivedMessage {
	return &kafka.ReceivedMessage{
		Topic: "adverse-events.raw",
		Report: &kafka.ReportMessage{
			SafetyReportID: fmt.Sprint(report["safetyreportid"]),
			Stream:         "openfda-drug-events",
			Report:         report,
		},
	}
}

func TestProcessDeliversTransformedBatch(t *testing.T) {
	router := &fakeRouter{}
	p := New(transform.New(1, nopLogger()), router, nopLogger())

	err := p.Process(context.Background(), envelope(models.RawReport{
		"safetyreportid": "101",
		"serious":        "1",
		"patient": map[string]any{
			"reaction": []any{
				map[string]any{"reactionmeddrapt": "Nausea"},
			},
		},
	}))

	assert.NoError(t, err)
	assert.Len(t, router.batches, 1)
	assert.Len(t, router.batches[0].Reports, 1)
	assert.Len(t, router.batches[0].Reactions, 1)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.MessagesProcessed)
	assert.Equal(t, int64(1), stats.ReportsDelivered)
	assert.Equal(t, int64(1), stats.FactsDelivered)
}

func TestProcessSkipsInvalidReportWithoutDelivery(t *testing.T) {
	router := &fakeRouter{}
	p := New(transform.New(1, nopLogger()), router, nopLogger())

	err := p.Process(context.Background(), envelope(models.RawReport{
		"serious": "1",
	}))

	assert.NoError(t, err)
	assert.Empty(t, router.batches)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.MessagesProcessed)
	assert.Equal(t, int64(1), stats.ValidationEvents)
	assert.Zero(t, stats.ReportsDelivered)
}

func TestProcessSurfacesDeliveryFailure(t *testing.T) {
	router := &fakeRouter{err: fmt.Errorf("sink down")}
	p := New(transform.New(1, nopLogger()), router, nopLogger())

	err := p.Process(context.Background(), envelope(models.RawReport{
		"safetyreportid": "101",
	}))

	assert.Error(t, err)
	assert.Equal(t, int64(1), p.Stats().DeliveryFailures)
}
