package http

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/dto"
	loginerrors "github.com/1195214305/xhs-backend/internal/domain/login/errors"
	pkgerrors "github.com/1195214305/xhs-backend/pkg/errors"
	"github.com/1195214305/xhs-backend/pkg/httputil"
)

// LoginHandler handles login flow and credential HTTP requests
type LoginHandler struct {
	flows       deps.FlowService
	credentials deps.CredentialService
	mapper      *pkgerrors.Mapper
	logger      zerolog.Logger
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(flows deps.FlowService, credentials deps.CredentialService, logger zerolog.Logger) *LoginHandler {
	logger = logger.With().Str("handler", "login").Logger()

	return &LoginHandler{
		flows:       flows,
		credentials: credentials,
		mapper:      NewErrorMapper(logger),
		logger:      logger,
	}
}

// NewErrorMapper maps login sentinel errors to HTTP statuses
func NewErrorMapper(logger zerolog.Logger) *pkgerrors.Mapper {
	return pkgerrors.NewMapper(logger).
		Register(loginerrors.ErrFlowNotFound, pkgerrors.KindNotFound, "flow not found").
		Register(loginerrors.ErrFlowExpired, pkgerrors.KindGone, "flow expired").
		Register(loginerrors.ErrMaxFlowsReached, pkgerrors.KindTooManyRequests, "too many active login flows").
		Register(loginerrors.ErrRateLimited, pkgerrors.KindTooManyRequests, "login flows started too often").
		Register(loginerrors.ErrNoValidCredential, pkgerrors.KindNotFound, "no valid credential").
		Register(loginerrors.ErrNavigationFailed, pkgerrors.KindUnavailable, "login page unavailable").
		Register(loginerrors.ErrQRExtractionFailed, pkgerrors.KindUnavailable, "failed to obtain qr code").
		Register(loginerrors.ErrSessionClosed, pkgerrors.KindUnavailable, "browser session closed").
		Register(loginerrors.ErrStorage, pkgerrors.KindInternal, "credential storage failure")
}

// StartFlow handles POST /api/v1/auth/qr/start
func (h *LoginHandler) StartFlow(ctx *fasthttp.RequestCtx) {
	flow, err := h.flows.Start(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to start login flow")
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, dto.NewStartFlowResponse(flow))
}

// GetStatus handles GET /api/v1/auth/qr/{flow_id}/status
func (h *LoginHandler) GetStatus(ctx *fasthttp.RequestCtx) {
	flowID, ok := flowIDParam(ctx)
	if !ok {
		h.handleError(ctx, pkgerrors.NewValidationErrorf("flow_id is required"))
		return
	}

	flow, err := h.flows.Status(ctx, flowID)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	httputil.WriteResponse(ctx, dto.NewFlowStatusResponse(flow))
}

// Cancel handles DELETE /api/v1/auth/qr/{flow_id}
func (h *LoginHandler) Cancel(ctx *fasthttp.RequestCtx) {
	flowID, ok := flowIDParam(ctx)
	if !ok {
		h.handleError(ctx, pkgerrors.NewValidationErrorf("flow_id is required"))
		return
	}

	if err := h.flows.Cancel(ctx, flowID); err != nil {
		h.handleError(ctx, err)
		return
	}

	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

// CurrentCredential handles GET /api/v1/credentials/current
func (h *LoginHandler) CurrentCredential(ctx *fasthttp.RequestCtx) {
	record, err := h.credentials.CurrentCredential(ctx)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	names := make([]string, 0, len(record.Cookies))
	for name := range record.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	httputil.WriteResponse(ctx, dto.CredentialResponse{
		ID:          record.ID,
		UserID:      record.UserID,
		CookieNames: names,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	})
}

// InvalidateCredentials handles POST /api/v1/credentials/invalidate
func (h *LoginHandler) InvalidateCredentials(ctx *fasthttp.RequestCtx) {
	n, err := h.credentials.InvalidateAll(ctx)
	if err != nil {
		h.handleError(ctx, err)
		return
	}

	h.logger.Info().Int64("invalidated", n).Msg("credentials invalidated over API")
	httputil.WriteResponse(ctx, dto.InvalidateResponse{Invalidated: n})
}

func (h *LoginHandler) handleError(ctx *fasthttp.RequestCtx, err error) {
	status, message := h.mapper.MapErrorToHTTP(err)
	httputil.WriteErrorResponse(ctx, message, status)
}

func flowIDParam(ctx *fasthttp.RequestCtx) (string, bool) {
	flowID, ok := ctx.UserValue("flow_id").(string)
	return flowID, ok && flowID != ""
}
