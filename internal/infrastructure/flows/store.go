package flows

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
)

// Store keeps login flows in memory until they expire
type Store struct {
	flows           sync.Map // map[string]*Flow
	cleanupInterval time.Duration
	maxFlows        int
	countMu         sync.Mutex
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	logger          zerolog.Logger
}

// NewStore creates a flow store and starts its cleanup goroutine
func NewStore(cleanupInterval time.Duration, maxFlows int, logger zerolog.Logger) *Store {
	store := &Store{
		cleanupInterval: cleanupInterval,
		maxFlows:        maxFlows,
		stopCleanup:     make(chan struct{}),
		logger:          logger.With().Str("component", "flow_store").Logger(),
	}

	go store.runCleanup()

	return store
}

// Store saves a flow. Only running flows count against the limit.
func (s *Store) Store(flow *Flow) error {
	s.countMu.Lock()
	defer s.countMu.Unlock()

	if s.activeLocked() >= s.maxFlows {
		return loginerrors.ErrMaxFlowsReached
	}

	s.flows.Store(flow.ID, flow)
	s.logger.Debug().Str("flow_id", flow.ID).Msg("flow stored")
	return nil
}

// Load retrieves a flow by ID. Expired flows are stopped and removed.
func (s *Store) Load(flowID string) (*Flow, error) {
	value, ok := s.flows.Load(flowID)
	if !ok {
		return nil, loginerrors.ErrFlowNotFound
	}

	flow := value.(*Flow)
	if flow.IsExpired() {
		flow.Stop()
		s.Delete(flowID)
		return nil, loginerrors.ErrFlowExpired
	}

	return flow, nil
}

// Delete removes a flow from the store
func (s *Store) Delete(flowID string) {
	if _, loaded := s.flows.LoadAndDelete(flowID); loaded {
		s.logger.Debug().Str("flow_id", flowID).Msg("flow deleted")
	}
}

// Cleanup removes expired flows and returns how many were removed
func (s *Store) Cleanup() int {
	var toDelete []*Flow

	s.flows.Range(func(_, value any) bool {
		flow := value.(*Flow)
		if flow.IsExpired() {
			toDelete = append(toDelete, flow)
		}
		return true
	})

	for _, flow := range toDelete {
		flow.Stop()
		s.Delete(flow.ID)
	}

	if len(toDelete) > 0 {
		s.logger.Info().Int("removed", len(toDelete)).Msg("cleaned up expired flows")
	}

	return len(toDelete)
}

// Count returns the number of running flows
func (s *Store) Count() int {
	s.countMu.Lock()
	defer s.countMu.Unlock()
	return s.activeLocked()
}

// StopAll cancels every running flow
func (s *Store) StopAll() {
	s.flows.Range(func(_, value any) bool {
		value.(*Flow).Stop()
		return true
	})
}

// Stop stops the cleanup goroutine
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

func (s *Store) activeLocked() int {
	active := 0
	s.flows.Range(func(_, value any) bool {
		if !value.(*Flow).IsTerminal() {
			active++
		}
		return true
	})
	return active
}

func (s *Store) runCleanup() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("interval", s.cleanupInterval).
		Int("max_flows", s.maxFlows).
		Msg("Flow cleanup started")

	for {
		select {
		case <-s.stopCleanup:
			s.logger.Info().Msg("Flow cleanup stopped")
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}
