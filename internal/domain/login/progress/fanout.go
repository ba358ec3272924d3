// Package progress delivers login progress events to sinks.
package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
)

// Fanout stamps events with the flow ID and delivers them to every sink.
// Once a terminal event has been delivered, later events are dropped.
type Fanout struct {
	flowID string
	sinks  []deps.ProgressSink
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	terminal *entities.ProgressEvent
}

// NewFanout creates a fanout for one login run
func NewFanout(flowID string, logger zerolog.Logger, sinks ...deps.ProgressSink) *Fanout {
	active := make([]deps.ProgressSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}

	return &Fanout{
		flowID: flowID,
		sinks:  active,
		logger: logger.With().Str("component", "progress").Str("flow_id", flowID).Logger(),
		now:    time.Now,
	}
}

// Emit delivers event to all sinks. Sink failures are logged and joined into
// the returned error; they never stop delivery to the remaining sinks.
func (f *Fanout) Emit(ctx context.Context, event entities.ProgressEvent) error {
	f.mu.Lock()
	if f.terminal != nil {
		f.mu.Unlock()
		f.logger.Warn().Str("step", string(event.Step)).Msg("event after terminal step dropped")
		return nil
	}
	if event.FlowID == "" {
		event.FlowID = f.flowID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = f.now().UTC()
	}
	if event.Step.IsTerminal() {
		f.terminal = &event
	}
	f.mu.Unlock()

	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			f.logger.Error().Err(err).Str("step", string(event.Step)).Msg("progress sink failed")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Terminal returns the terminal event, if one was emitted
func (f *Fanout) Terminal() (entities.ProgressEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminal == nil {
		return entities.ProgressEvent{}, false
	}
	return *f.terminal, true
}

var _ deps.ProgressSink = (*Fanout)(nil)
