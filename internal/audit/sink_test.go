package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docsplit/internal/audit"
	"docsplit/mocks"
	"docsplit/pkg/models"
)

func testOptions() audit.Options {
	opts := audit.DefaultOptions()
	opts.BreakerCooldown = time.Hour
	return opts
}

func record(jobID string, page int) audit.Record {
	return audit.PageRecord(jobID, "scan.pdf", models.PageResult{PageIndex: page})
}

func TestAsyncSinkDeliversAndDrains(t *testing.T) {
	transport := new(mocks.MockTransport)
	transport.On("Send", mock.Anything, mock.AnythingOfType("audit.Record")).Return(nil)
	transport.On("Close").Return(nil)

	sink := audit.NewAsyncSink(transport, testOptions())
	for i := 0; i < 10; i++ {
		sink.Submit(record("job-1", i))
	}
	require.NoError(t, sink.Close(context.Background()))

	stats := sink.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, int64(10), stats.Sent)
	assert.Zero(t, stats.Dropped())
	transport.AssertNumberOfCalls(t, "Send", 10)
	transport.AssertCalled(t, "Close")
}

func TestAsyncSinkBreakerDropsAfterFailures(t *testing.T) {
	transport := new(mocks.MockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	transport.On("Close").Return(nil)

	opts := testOptions()
	opts.BreakerThreshold = 3
	sink := audit.NewAsyncSink(transport, opts)
	for i := 0; i < 10; i++ {
		sink.Submit(record("job-1", i))
	}
	require.NoError(t, sink.Close(context.Background()))

	stats := sink.Stats()
	assert.Equal(t, int64(3), stats.Failed)
	assert.Zero(t, stats.Sent)
	assert.Equal(t, int64(7), stats.Dropped())
	assert.Equal(t, audit.StateOpen, sink.Breaker().State())
	transport.AssertNumberOfCalls(t, "Send", 3)
}

func TestAsyncSinkFullQueueDropsWithoutBlocking(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})

	transport := new(mocks.MockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	transport.On("Close").Return(nil)

	opts := testOptions()
	opts.QueueSize = 2
	sink := audit.NewAsyncSink(transport, opts)

	sink.Submit(record("job-1", 0))
	<-started

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 3; i++ {
			sink.Submit(record("job-1", i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(release)
	require.NoError(t, sink.Close(context.Background()))

	stats := sink.Stats()
	assert.Equal(t, int64(4), stats.Submitted)
	assert.Equal(t, int64(3), stats.Sent)
	assert.Equal(t, int64(1), stats.DroppedFull)
}

func TestAsyncSinkCloseTwice(t *testing.T) {
	transport := new(mocks.MockTransport)
	transport.On("Close").Return(nil)

	sink := audit.NewAsyncSink(transport, testOptions())
	require.NoError(t, sink.Close(context.Background()))
	assert.ErrorIs(t, sink.Close(context.Background()), audit.ErrSinkClosed)

	sink.Submit(record("job-1", 0))
	assert.Equal(t, int64(1), sink.Stats().DroppedOpen)
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestPageRecordStatus(t *testing.T) {
	low := audit.PageRecord("job", "scan.pdf", models.PageResult{
		PageIndex: 4,
		Winner:    models.Candidate{NormalizedText: "B-HK-WFE-S1797564", Score: 89},
	})
	assert.Equal(t, audit.StatusLowConfidence, low.Status)
	assert.Equal(t, 5, low.StartPage)
	assert.Equal(t, audit.KindPage, low.Kind)

	ok := audit.PageRecord("job", "scan.pdf", models.PageResult{
		Winner: models.Candidate{NormalizedText: "B-HK-WFE-S17970643", Score: 150, StrictValid: true},
	})
	assert.Equal(t, audit.StatusOK, ok.Status)
	assert.Equal(t, "B-HK-WFE-S17970643", ok.Label)
	assert.NotEmpty(t, ok.ID)
}

func TestSplitRecordStatus(t *testing.T) {
	members := []models.PageResult{
		{PageIndex: 0, Winner: models.Candidate{NormalizedText: "H", Score: 120, StrictValid: true}},
		{PageIndex: 1, Winner: models.Candidate{NormalizedText: "H", Score: 150, StrictValid: true}},
	}
	unit := models.SplitUnit{
		Group:        models.Group{StartPage: 0, EndPage: 1, Label: "H", Members: members},
		Destination:  "out/H_1.pdf",
		Status:       models.SplitCommitted,
		UsedFallback: true,
		Attempts:     4,
	}

	rec := audit.SplitRecord("job", "scan.pdf", unit)
	assert.Equal(t, audit.StatusFallback, rec.Status)
	assert.Equal(t, 150, rec.Score)
	assert.True(t, rec.StrictValid)
	assert.Equal(t, 1, rec.StartPage)
	assert.Equal(t, 2, rec.EndPage)

	unit.Status = models.SplitFailed
	assert.Equal(t, audit.StatusFailed, audit.SplitRecord("job", "scan.pdf", unit).Status)
}
