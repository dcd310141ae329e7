package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityscope/equityscope/internal/aggregate"
	"github.com/equityscope/equityscope/internal/model"
)

// stubRunner scripts one aggregation run: it emits the given events,
// then blocks on release (when set) before returning.
type stubRunner struct {
	events   []model.MetricEvent
	artifact *model.ResearchArtifact
	err      error
	started  chan struct{}
	release  chan struct{}
}

func (r *stubRunner) Run(ctx context.Context, _, _ string, sink aggregate.Sink) (*model.ResearchArtifact, error) {
	if r.started != nil {
		close(r.started)
	}

	for _, event := range r.events {
		sink.Emit(event)
	}

	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return r.artifact, r.err
}

func TestParseRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in          string
		wantTicker  string
		wantCompany string
	}{
		{"Research Tesla", "TSLA", "Tesla"},
		{"research AAPL Apple Inc", "AAPL", "Apple"},
		{"NVDA Nvidia Corporation", "NVDA", "Nvidia"},
		{"Microsoft", "MSFT", "Microsoft"},
	}

	for _, tt := range tests {
		symbol, company, err := ParseRequest(tt.in)

		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.wantTicker, symbol, tt.in)
		assert.Equal(t, tt.wantCompany, company, tt.in)
	}
}

func TestParseRequestRejectsUnparseable(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "research ", "completely unresolvable gibberish input"} {
		_, _, err := ParseRequest(in)

		require.Error(t, err, in)
		assert.ErrorIs(t, err, ErrInvalidParams, in)
	}
}

func TestSubmitRunsToCompletion(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{
		events: []model.MetricEvent{
			{Source: "SEC EDGAR", Metric: "revenue", Value: 100.0},
			{Source: "FRED", Metric: "VIX", Value: 17.0},
		},
		artifact: &model.ResearchArtifact{Ticker: "TSLA", SourcesAvailable: model.BasketOrder},
	}

	manager := NewManager(runner, nil)

	created, err := manager.Submit("Research Tesla")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSubmitted, created.Status)

	require.Eventually(t, func() bool {
		task, getErr := manager.Get(created.ID)

		return getErr == nil && task.Status == model.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	task, err := manager.Get(created.ID)
	require.NoError(t, err)

	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, "data", task.Artifacts[0].Kind)
	assert.Equal(t, "TSLA", task.Artifacts[0].Data.Ticker)

	require.Len(t, task.PartialMetrics, 2)
	assert.Equal(t, "revenue", task.PartialMetrics[0].Metric)
	assert.False(t, task.PartialMetrics[0].Timestamp.IsZero())
}

func TestSubmitRecordsFailure(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{err: errors.New("every basket exploded")}
	manager := NewManager(runner, nil)

	created, err := manager.Submit("Research Apple")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, getErr := manager.Get(created.ID)

		return getErr == nil && task.Status == model.StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	task, err := manager.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "every basket exploded", task.Error)
	assert.Empty(t, task.Artifacts)
}

func TestCancelWorkingTask(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	manager := NewManager(runner, nil)

	created, err := manager.Submit("Research Tesla")
	require.NoError(t, err)

	<-runner.started

	canceled, err := manager.Cancel(created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCanceled, canceled.Status)

	// Terminal states are final: the runner returning cannot overwrite.
	require.Eventually(t, func() bool {
		task, getErr := manager.Get(created.ID)

		return getErr == nil && task.Status == model.StatusCanceled
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMetricsIgnoredAfterTerminal(t *testing.T) {
	t.Parallel()

	manager := NewManager(&stubRunner{artifact: &model.ResearchArtifact{}}, nil)

	created, err := manager.Submit("Research Tesla")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, getErr := manager.Get(created.ID)

		return getErr == nil && task.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	manager.appendMetric(created.ID, model.MetricEvent{Metric: "late"})

	task, err := manager.Get(created.ID)
	require.NoError(t, err)
	assert.Empty(t, task.PartialMetrics)
}

func TestGetUnknownTask(t *testing.T) {
	t.Parallel()

	manager := NewManager(&stubRunner{}, nil)

	_, err := manager.Get("nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = manager.Cancel("nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
