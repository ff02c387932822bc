package qdrant

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/questinrest/offline-rag-bot/internal/infrastructure/resilience"
)

type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, e.Body)
}

func classifyQdrantError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		// 404 on a missing collection is handled by the caller.
		if statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusConflict {
			return resilience.Ignored
		}
		return resilience.HTTPStatusClass(statusErr.StatusCode)
	}
	return resilience.Permanent
}
