package flows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/1195214305/xhs-backend/config"
	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
	"github.com/1195214305/xhs-backend/internal/domain/login/progress"
)

// Manager starts login flows in the background and tracks their state
type Manager struct {
	runner         deps.LoginRunner
	store          *Store
	limiter        *rate.Limiter
	ttl            time.Duration
	qrReadyTimeout time.Duration
	wg             sync.WaitGroup
	logger         zerolog.Logger
}

// NewManager creates a flow manager
func NewManager(runner deps.LoginRunner, store *Store, cfg *config.FlowsConfig, logger zerolog.Logger) *Manager {
	limit := rate.Inf
	if cfg.StartRate > 0 {
		limit = rate.Limit(cfg.StartRate)
	}
	burst := cfg.StartBurst
	if burst < 1 {
		burst = 1
	}

	return &Manager{
		runner:         runner,
		store:          store,
		limiter:        rate.NewLimiter(limit, burst),
		ttl:            cfg.TTL,
		qrReadyTimeout: cfg.QRReadyTimeout,
		logger:         logger.With().Str("component", "flow_manager").Logger(),
	}
}

// Start launches a login flow and returns once its QR code is ready
func (m *Manager) Start(ctx context.Context) (*entities.FlowSnapshot, error) {
	if !m.limiter.Allow() {
		return nil, loginerrors.ErrRateLimited
	}

	flowID := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), m.ttl)
	flow := newFlow(flowID, time.Now(), m.ttl, cancel)

	if err := m.store.Store(flow); err != nil {
		cancel()
		return nil, err
	}

	m.logger.Info().Str("flow_id", flowID).Msg("starting login flow")

	qrReady := make(chan error, 1)

	m.wg.Add(1)
	go m.run(runCtx, flow, qrReady)

	select {
	case err := <-qrReady:
		if err != nil {
			m.store.Delete(flowID)
			return nil, err
		}
	case <-time.After(m.qrReadyTimeout):
		flow.MarkCancelled("timeout waiting for qr code")
		m.store.Delete(flowID)
		return nil, fmt.Errorf("%w: timeout waiting for qr code", loginerrors.ErrQRExtractionFailed)
	case <-ctx.Done():
		flow.MarkCancelled(ctx.Err().Error())
		m.store.Delete(flowID)
		return nil, ctx.Err()
	}

	return flow.GetSnapshot(), nil
}

// Status returns the current state of a flow
func (m *Manager) Status(_ context.Context, flowID string) (*entities.FlowSnapshot, error) {
	flow, err := m.store.Load(flowID)
	if err != nil {
		return nil, err
	}
	return flow.GetSnapshot(), nil
}

// Cancel stops a running flow. Cancelling a finished flow is a no-op.
func (m *Manager) Cancel(_ context.Context, flowID string) error {
	flow, err := m.store.Load(flowID)
	if err != nil {
		return err
	}

	flow.MarkCancelled("cancelled by request")
	m.logger.Info().Str("flow_id", flowID).Msg("login flow cancelled")
	return nil
}

// Stop cancels all running flows and waits for them to finish
func (m *Manager) Stop(ctx context.Context) error {
	m.store.StopAll()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run drives one flow. qrReady receives exactly one value: nil once the QR
// code is shown, or the error that ended the flow before that.
func (m *Manager) run(ctx context.Context, flow *Flow, qrReady chan<- error) {
	defer m.wg.Done()
	defer flow.Stop()

	var once sync.Once
	signal := func(err error) {
		once.Do(func() { qrReady <- err })
	}

	sink := progress.SinkFunc(func(_ context.Context, e entities.ProgressEvent) error {
		flow.Apply(e)
		if e.Step == entities.StepQRCodeReady {
			signal(nil)
		}
		return nil
	})

	report, err := m.runner.Run(ctx, flow.ID, sink)
	if err != nil {
		signal(err)
		if !errors.Is(err, context.Canceled) {
			m.logger.Error().Err(err).Str("flow_id", flow.ID).Msg("login flow failed")
		}
		return
	}

	signal(fmt.Errorf("login flow ended before qr code: %s", report.Outcome))

	m.logger.Info().
		Str("flow_id", flow.ID).
		Str("outcome", report.Outcome).
		Bool("success", report.Success).
		Msg("login flow finished")
}

var _ deps.FlowService = (*Manager)(nil)
