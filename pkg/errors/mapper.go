package errors

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

type rule struct {
	target  error
	kind    Kind
	message string
}

// Mapper maps domain errors to HTTP status codes
type Mapper struct {
	rules  []rule
	logger zerolog.Logger
}

// NewMapper creates a new error mapper
func NewMapper(logger zerolog.Logger) *Mapper {
	return &Mapper{logger: logger}
}

// Register maps errors matching target (errors.Is) to kind. Rules are
// checked in registration order.
func (m *Mapper) Register(target error, kind Kind, message string) *Mapper {
	m.rules = append(m.rules, rule{target: target, kind: kind, message: message})
	return m
}

// MapErrorToHTTP maps an error to HTTP status code and message
func (m *Mapper) MapErrorToHTTP(err error) (int, string) {
	if err == nil {
		return fasthttp.StatusOK, ""
	}

	var classified *Error
	if errors.As(err, &classified) {
		return m.status(classified.Kind, err), classified.Message
	}

	for _, r := range m.rules {
		if errors.Is(err, r.target) {
			return m.status(r.kind, err), r.message
		}
	}

	m.logger.Error().Err(err).Msg("unknown error")
	return fasthttp.StatusInternalServerError, "internal server error"
}

func (m *Mapper) status(kind Kind, err error) int {
	switch kind {
	case KindValidation:
		return fasthttp.StatusBadRequest
	case KindNotFound:
		return fasthttp.StatusNotFound
	case KindConflict:
		return fasthttp.StatusConflict
	case KindGone:
		return fasthttp.StatusGone
	case KindTooManyRequests:
		return fasthttp.StatusTooManyRequests
	case KindUnavailable:
		return fasthttp.StatusServiceUnavailable
	default:
		m.logger.Error().Err(err).Msg("internal server error")
		return fasthttp.StatusInternalServerError
	}
}
