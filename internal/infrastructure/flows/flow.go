// Package flows runs login flows in the background for the HTTP API.
package flows

import (
	"context"
	"sync"
	"time"

	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
)

// Flow holds runtime data of one background login
type Flow struct {
	*entities.FlowSnapshot
	cancel context.CancelFunc
	mu     sync.RWMutex
}

func newFlow(id string, now time.Time, ttl time.Duration, cancel context.CancelFunc) *Flow {
	return &Flow{
		FlowSnapshot: &entities.FlowSnapshot{
			ID:        id,
			Status:    entities.FlowStarting,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
			UpdatedAt: now,
		},
		cancel: cancel,
	}
}

// Apply folds a progress event into the flow state. Events after a terminal
// status are ignored.
func (f *Flow) Apply(e entities.ProgressEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Status.IsTerminal() {
		return
	}

	switch {
	case e.Step == entities.StepQRCodeReady:
		f.QR = e.QR
	case e.Step == entities.StepWaiting:
		f.Status = entities.FlowWaiting
	case e.Step == entities.StepQRCodeStatus && e.Status != nil:
		code := e.Status.Data.CodeStatus
		f.CodeStatus = &code
	case e.Step.IsTerminal():
		f.Status = entities.FlowStatusForStep(e.Step)
		f.UserID = e.UserID
		f.Reason = e.Reason
	}
	f.UpdatedAt = time.Now()
}

// MarkCancelled finishes the flow on request and stops its run
func (f *Flow) MarkCancelled(reason string) {
	f.mu.Lock()
	if !f.Status.IsTerminal() {
		f.Status = entities.FlowCancelled
		f.Reason = reason
		f.UpdatedAt = time.Now()
	}
	f.mu.Unlock()

	f.Stop()
}

// Stop cancels the flow's context
func (f *Flow) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
}

// IsExpired reports whether the flow outlived its TTL
func (f *Flow) IsExpired() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return time.Now().After(f.ExpiresAt)
}

// IsTerminal reports whether the flow has finished
func (f *Flow) IsTerminal() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.Status.IsTerminal()
}

// GetSnapshot returns a thread-safe copy of the flow state
func (f *Flow) GetSnapshot() *entities.FlowSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	snapshot := *f.FlowSnapshot
	return &snapshot
}
