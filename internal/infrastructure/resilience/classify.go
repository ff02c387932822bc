package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/questinrest/offline-rag-bot/internal/core/domain"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

var (
	// Transient failures are retried and count against the breaker.
	Transient = ErrorClassification{Retryable: true, RecordFailure: true}
	// Permanent failures are returned as-is but still count against the breaker.
	Permanent = ErrorClassification{Retryable: false, RecordFailure: true}
	// Ignored failures are the caller's fault and leave the breaker alone.
	Ignored = ErrorClassification{}
)

// ClassifyCommon handles the cases every collaborator shares: cancellation, an open
// breaker and network errors. ok is false when the caller must decide.
func ClassifyCommon(err error) (class ErrorClassification, ok bool) {
	switch {
	case err == nil:
		return Ignored, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Ignored, true
	case IsCircuitOpen(err):
		return Transient, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient, true
	}
	return ErrorClassification{}, false
}

// HTTPStatusClass classifies an upstream HTTP status code.
func HTTPStatusClass(code int) ErrorClassification {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return Transient
	}
	if code >= 500 {
		return Permanent
	}
	return Ignored
}

// MarkTemporary tags err with domain.ErrTemporary when classifier considers it retryable
// or the breaker rejected the call. The original error stays reachable through errors.Is.
func MarkTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = defaultClassifier
	}
	if IsCircuitOpen(err) || classifier(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func defaultClassifier(err error) ErrorClassification {
	if class, ok := ClassifyCommon(err); ok {
		return class
	}
	return Permanent
}
