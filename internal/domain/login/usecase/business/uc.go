package business

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
	"github.com/1195214305/xhs-backend/internal/domain/login/observer"
	"github.com/1195214305/xhs-backend/internal/domain/login/poller"
	"github.com/1195214305/xhs-backend/internal/domain/login/progress"
	"github.com/1195214305/xhs-backend/internal/utils"
)

// outcomeFailed is reported when a run ends before or after polling with an error
const outcomeFailed = "failed"

// Config controls one login run
type Config struct {
	LoginURL          string
	QRWrapperSelector string
	QRImageSelector   string
	ModalTimeout      time.Duration
	StatusEndpoint    string
	QRCreateEndpoint  string
	TrustStatusPush   bool
	Poller            poller.Config
}

// Params groups the collaborators of LoginUseCase
type Params struct {
	Launcher  deps.BrowserLauncher
	Extractor deps.QRExtractor
	Encoder   deps.QREncoder
	Store     deps.CredentialStore
	Metrics   deps.LoginMetrics
	Sinks     []deps.ProgressSink
	Config    Config
	Logger    zerolog.Logger
}

// LoginUseCase drives one browser session through the QR login flow
type LoginUseCase struct {
	launcher  deps.BrowserLauncher
	extractor deps.QRExtractor
	encoder   deps.QREncoder
	store     deps.CredentialStore
	metrics   deps.LoginMetrics
	sinks     []deps.ProgressSink
	cfg       Config
	logger    zerolog.Logger
}

// NewUseCase creates a new login use case
func NewUseCase(p Params) *LoginUseCase {
	m := p.Metrics
	if m == nil {
		m = nopMetrics{}
	}
	return &LoginUseCase{
		launcher:  p.Launcher,
		extractor: p.Extractor,
		encoder:   p.Encoder,
		store:     p.Store,
		metrics:   m,
		sinks:     p.Sinks,
		cfg:       p.Config,
		logger:    p.Logger.With().Str("usecase", "login").Logger(),
	}
}

// Run performs a full login and returns its report. Timeout and cancellation
// are regular outcomes; the error is set only for failed runs.
// Exactly one terminal event reaches the sinks on every path.
func (uc *LoginUseCase) Run(ctx context.Context, flowID string, sinks ...deps.ProgressSink) (entities.LoginReport, error) {
	if flowID == "" {
		flowID = uuid.New().String()
	}

	all := make([]deps.ProgressSink, 0, len(uc.sinks)+len(sinks))
	all = append(all, uc.sinks...)
	all = append(all, sinks...)
	fan := progress.NewFanout(flowID, uc.logger, all...)
	logger := uc.logger.With().Str("flow_id", flowID).Logger()

	start := time.Now()
	uc.metrics.FlowStarted()
	defer uc.metrics.FlowFinished()

	report, err := uc.run(ctx, fan, logger)
	if err != nil {
		failed := uc.fail(ctx, fan, err)
		failed.LoginInfo = report.LoginInfo
		report = failed
	}

	uc.metrics.RecordFlow(report.Outcome, time.Since(start))
	logger.Info().
		Str("outcome", report.Outcome).
		Bool("success", report.Success).
		Dur("duration", time.Since(start)).
		Msg("login flow finished")

	return report, err
}

func (uc *LoginUseCase) run(ctx context.Context, fan *progress.Fanout, logger zerolog.Logger) (entities.LoginReport, error) {
	session, err := uc.launcher.Launch(ctx)
	if err != nil {
		return entities.LoginReport{}, fmt.Errorf("launch browser: %w", err)
	}
	defer uc.closeSession(session, logger)

	obs := observer.New(uc.cfg.StatusEndpoint, uc.metrics, logger)
	detach := obs.Attach(session)
	defer detach()

	// sinks still get the terminal event after ctx is cancelled
	ectx := context.WithoutCancel(ctx)

	qr, err := uc.openLoginQR(ctx, session, logger)
	if err != nil {
		return entities.LoginReport{}, err
	}

	_ = fan.Emit(ectx, entities.ProgressEvent{Step: entities.StepQRCodeReady, Success: true, QR: qr})
	_ = fan.Emit(ectx, entities.ProgressEvent{Step: entities.StepWaiting, Success: true})

	opts := []poller.Option{poller.WithMetrics(uc.metrics)}
	if uc.cfg.TrustStatusPush {
		opts = append(opts, poller.WithSignals(poller.StatusPushSignal(obs.IsLoggedIn)))
	}
	p, err := poller.New(session, uc.cfg.Poller, logger, opts...)
	if err != nil {
		return entities.LoginReport{}, err
	}

	result := p.Run(ctx)

	report := entities.LoginReport{Outcome: string(result.Outcome)}
	if obs.IsLoggedIn() {
		status, _ := obs.LatestStatus()
		_ = fan.Emit(ectx, entities.ProgressEvent{Step: entities.StepQRCodeStatus, Success: true, Status: &status})
		report.LoginInfo, _ = obs.LoginInfo()
	}

	if result.Outcome != entities.OutcomeConfirmed {
		logger.Info().Str("outcome", string(result.Outcome)).Str("reason", result.Reason).Msg("login not confirmed")
		report.Error = result.Reason
		_ = fan.Emit(ectx, entities.ProgressEvent{
			Step:   entities.TerminalStep(result.Outcome),
			Reason: result.Reason,
		})
		return report, nil
	}

	cookies := entities.CookieMap(result.Cookies)
	logger.Debug().Interface("cookies", utils.MaskCookies(cookies)).Msg("saving credential")
	userID, err := uc.store.Save(ctx, cookies)
	uc.metrics.RecordCredentialSave(err)
	if err != nil {
		return report, err
	}

	logger.Info().
		Str("signal", result.Signal).
		Int("cookie_count", len(cookies)).
		Msg("credentials saved")

	report.Success = true
	report.UserID = userID
	report.CookieCount = len(cookies)
	_ = fan.Emit(ectx, entities.ProgressEvent{Step: entities.StepConfirmed, Success: true, UserID: userID})

	return report, nil
}

// ExtractQR opens the login modal and returns the QR code without waiting for
// a scan
func (uc *LoginUseCase) ExtractQR(ctx context.Context) (*entities.QRCode, error) {
	session, err := uc.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer uc.closeSession(session, uc.logger)

	return uc.openLoginQR(ctx, session, uc.logger)
}

// InvalidateAll invalidates every stored credential
func (uc *LoginUseCase) InvalidateAll(ctx context.Context) (int64, error) {
	n, err := uc.store.InvalidateAll(ctx)
	if err != nil {
		uc.logger.Error().Err(err).Msg("failed to invalidate credentials")
		return 0, err
	}
	uc.metrics.RecordInvalidation(n)
	uc.logger.Info().Int64("invalidated", n).Msg("credentials invalidated")
	return n, nil
}

// CurrentCredential returns the single valid credential
func (uc *LoginUseCase) CurrentCredential(ctx context.Context) (*entities.CredentialRecord, error) {
	return uc.store.Current(ctx)
}

// openLoginQR navigates to the entry point, waits for the login modal and
// extracts the QR code
func (uc *LoginUseCase) openLoginQR(ctx context.Context, session deps.Session, logger zerolog.Logger) (*entities.QRCode, error) {
	capture := observer.NewQRURLCapture(uc.cfg.QRCreateEndpoint, logger)
	detach := capture.Attach(session)
	defer detach()

	if err := session.Navigate(ctx, uc.cfg.LoginURL); err != nil {
		return nil, fmt.Errorf("%w: %w", loginerrors.ErrNavigationFailed, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, uc.cfg.ModalTimeout)
	defer cancel()
	if err := session.WaitVisible(waitCtx, uc.cfg.QRWrapperSelector); err != nil {
		return nil, fmt.Errorf("%w: login modal not shown: %w", loginerrors.ErrNavigationFailed, err)
	}

	if url := capture.URL(); url != "" && uc.encoder != nil {
		qr, err := uc.encoder.Encode(url)
		if err == nil {
			logger.Debug().Msg("qr code encoded from captured login url")
			return qr, nil
		}
		logger.Warn().Err(err).Msg("failed to encode captured login url, falling back to page")
	}

	qr, err := uc.extractor.Extract(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", loginerrors.ErrQRExtractionFailed, err)
	}
	if qr == nil || !qr.Success {
		return nil, loginerrors.ErrQRExtractionFailed
	}
	if qr.URL == "" {
		qr.URL = capture.URL()
	}

	return qr, nil
}

// fail emits the terminal event for err and builds the matching report.
// A closed session or cancelled context is reported as cancelled.
func (uc *LoginUseCase) fail(ctx context.Context, fan *progress.Fanout, err error) entities.LoginReport {
	step := entities.StepFailed
	outcome := outcomeFailed
	if errors.Is(err, loginerrors.ErrSessionClosed) || ctx.Err() != nil {
		step = entities.StepCancelled
		outcome = string(entities.OutcomeCancelled)
	}

	uc.logger.Error().Err(err).Str("outcome", outcome).Msg("login flow failed")
	_ = fan.Emit(context.WithoutCancel(ctx), entities.ProgressEvent{Step: step, Reason: err.Error()})

	return entities.LoginReport{Outcome: outcome, Error: err.Error()}
}

func (uc *LoginUseCase) closeSession(session deps.Session, logger zerolog.Logger) {
	if err := session.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close browser session")
	}
}
