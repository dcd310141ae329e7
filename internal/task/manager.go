// Package task owns the research task lifecycle and its JSON-RPC HTTP
// surface. Tasks live in memory; partial metrics accumulate on a task
// only while it is WORKING.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/equityscope/equityscope/internal/aggregate"
	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/internal/ticker"
)

var (
	// ErrInvalidParams reports a request whose message could not be
	// parsed into a company identity.
	ErrInvalidParams = errors.New("invalid params")

	// ErrTaskNotFound reports an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
)

// Runner executes one research aggregation. The aggregator satisfies it.
type Runner interface {
	Run(ctx context.Context, ticker, company string, sink aggregate.Sink) (*model.ResearchArtifact, error)
}

// Manager tracks research tasks and drives their background runs.
type Manager struct {
	runner Runner
	logger *slog.Logger

	mu    sync.RWMutex
	tasks map[string]*taskState
}

type taskState struct {
	task   model.Task
	cancel context.CancelFunc
}

// NewManager builds a task manager over the given runner.
func NewManager(runner Runner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		runner: runner,
		logger: logger,
		tasks:  map[string]*taskState{},
	}
}

// ParseRequest extracts a ticker and company name from free-form
// message text. A leading "research " is stripped; "TSLA Tesla Inc"
// takes the explicit ticker, anything else goes through resolution.
func ParseRequest(text string) (string, string, error) {
	trimmed := strings.TrimSpace(text)

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "research ") {
		trimmed = strings.TrimSpace(trimmed[len("research "):])
	}

	if trimmed == "" {
		return "", "", fmt.Errorf("%w: empty message", ErrInvalidParams)
	}

	words := strings.Fields(trimmed)
	if len(words) >= 2 && looksLikeTicker(words[0]) {
		company := ticker.CleanCompanyName(strings.Join(words[1:], " "))

		return words[0], company, nil
	}

	identity, err := ticker.Resolve(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("%w: could not parse company/ticker from %q", ErrInvalidParams, text)
	}

	return identity.Ticker, identity.CompanyName, nil
}

func looksLikeTicker(word string) bool {
	if len(word) > 5 {
		return false
	}

	return word == strings.ToUpper(word) && word != strings.ToLower(word)
}

// Submit creates a task for the message text and starts the research
// run in the background.
func (m *Manager) Submit(text string) (model.Task, error) {
	symbol, company, err := ParseRequest(text)
	if err != nil {
		return model.Task{}, err
	}

	now := time.Now().UTC()
	ctx, cancel := context.WithCancel(context.Background())

	state := &taskState{
		task: model.Task{
			ID:             uuid.NewString(),
			Status:         model.StatusSubmitted,
			Message:        text,
			PartialMetrics: []model.MetricEvent{},
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.tasks[state.task.ID] = state
	m.mu.Unlock()

	m.logger.Info("task created",
		slog.String("task_id", state.task.ID),
		slog.String("ticker", symbol),
		slog.String("company", company))

	go m.run(ctx, state.task.ID, symbol, company)

	return state.task, nil
}

// Get returns a snapshot of the task.
func (m *Manager) Get(id string) (model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.tasks[id]
	if !ok {
		return model.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	return snapshot(state.task), nil
}

// Cancel stops a non-terminal task. Canceling a terminal task is a
// no-op returning its current state.
func (m *Manager) Cancel(id string) (model.Task, error) {
	m.mu.Lock()

	state, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()

		return model.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	if !state.task.Status.Terminal() {
		state.task.Status = model.StatusCanceled
		state.task.UpdatedAt = time.Now().UTC()
	}

	task := snapshot(state.task)
	cancel := state.cancel

	m.mu.Unlock()

	cancel()

	return task, nil
}

// Count reports the number of tasks held in memory.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.tasks)
}

// run drives one research task to a terminal state.
func (m *Manager) run(ctx context.Context, id, symbol, company string) {
	m.transition(id, model.StatusWorking, nil, "")

	sink := aggregate.SinkFunc(func(event model.MetricEvent) {
		m.appendMetric(id, event)
	})

	artifact, err := m.runner.Run(ctx, symbol, company, sink)

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		// Cancel already moved the task to CANCELED; transition is a
		// no-op on terminal states.
		m.transition(id, model.StatusCanceled, nil, "")
	case err != nil:
		m.logger.Error("task failed",
			slog.String("task_id", id),
			slog.String("error", err.Error()))

		m.transition(id, model.StatusFailed, nil, err.Error())
	default:
		m.logger.Info("task completed",
			slog.String("task_id", id),
			slog.Int("sources_available", len(artifact.SourcesAvailable)))

		m.transition(id, model.StatusCompleted, artifact, "")
	}
}

// transition moves a task to a new status. Terminal states are final;
// a transition on a terminal task is dropped.
func (m *Manager) transition(id string, status model.TaskStatus, artifact *model.ResearchArtifact, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.tasks[id]
	if !ok || state.task.Status.Terminal() {
		return
	}

	state.task.Status = status
	state.task.UpdatedAt = time.Now().UTC()

	if artifact != nil {
		state.task.Artifacts = []model.Artifact{{Kind: "data", Data: artifact}}
	}

	if errMsg != "" {
		state.task.Error = errMsg
	}
}

// appendMetric records a streamed metric on a WORKING task, stamping
// the timestamp at receive time.
func (m *Manager) appendMetric(id string, event model.MetricEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.tasks[id]
	if !ok || state.task.Status != model.StatusWorking {
		return
	}

	event.Timestamp = time.Now().UTC()

	state.task.PartialMetrics = append(state.task.PartialMetrics, event)
	state.task.UpdatedAt = event.Timestamp
}

// snapshot copies a task so callers never observe in-place mutation.
func snapshot(task model.Task) model.Task {
	copied := task
	copied.PartialMetrics = append([]model.MetricEvent(nil), task.PartialMetrics...)
	copied.Artifacts = append([]model.Artifact(nil), task.Artifacts...)

	return copied
}
