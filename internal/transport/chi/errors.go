package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/krishrathi1/kalasarthi-match/internal/domain"
	"github.com/krishrathi1/kalasarthi-match/internal/usecase/scheduler"
)

// ErrorCode is the machine-readable error category in API responses.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest           ErrorCode = "bad_request"
	CodeValidationFailed     ErrorCode = "validation_failed"
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeNotFound             ErrorCode = "not_found"
	CodeUnknownTask          ErrorCode = "unknown_task"
	CodeMaintenanceBusy      ErrorCode = "maintenance_in_progress"
	CodeEmbeddingUnavailable ErrorCode = "embedding_unavailable"
	CodeIndexUnavailable     ErrorCode = "index_unavailable"
	CodeInternalError        ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// sentinelRule maps a domain sentinel to an HTTP status and error code.
type sentinelRule struct {
	sentinel error
	status   int
	code     ErrorCode
}

// sentinelRules is ordered: the first match wins.
var sentinelRules = []sentinelRule{
	{domain.ErrInvalidQuery, http.StatusBadRequest, CodeValidationFailed},
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{scheduler.ErrUnknownTask, http.StatusNotFound, CodeUnknownTask},
	{domain.ErrSchedulerRunSkipped, http.StatusConflict, CodeMaintenanceBusy},
	{domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, CodeEmbeddingUnavailable},
	{domain.ErrIndexUnavailable, http.StatusServiceUnavailable, CodeIndexUnavailable},
}

// classify returns the rule matching err. The message is the sentinel text only,
// never the wrapped cause.
func classify(err error) (status int, code ErrorCode, msg string) {
	for _, r := range sentinelRules {
		if errors.Is(err, r.sentinel) {
			return r.status, r.code, r.sentinel.Error()
		}
	}
	return http.StatusInternalServerError, CodeInternalError, "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	log := s.log(r)
	if code == CodeInternalError {
		log.Error("internal error", zap.Error(err))
	} else {
		log.Warn("domain error", zap.Error(err), zap.String("code", string(code)))
	}
	writeError(w, status, code, msg)
}
