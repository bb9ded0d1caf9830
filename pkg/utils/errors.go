package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrClientHTTPError = errors.New("client HTTP error (4xx)")    // Wraps original error/status
	ErrServerHTTPError = errors.New("server HTTP error (5xx)")    // Wraps original error/status
	ErrOtherHTTPError  = errors.New("other HTTP error (non-2xx)") // Wraps original error/status
	ErrRequestCreation     = errors.New("failed to create HTTP request")
	ErrResponseBodyRead    = errors.New("failed to read response body")
	ErrParsing             = errors.New("parsing error")    // Wraps specific parsing error (HTML, price, JSON)
	ErrFilesystem          = errors.New("filesystem error") // Wraps os errors
	ErrDatabase            = errors.New("database error")   // Wraps badger errors
	ErrConfigValidation    = errors.New("configuration validation error")
	ErrCatalog             = errors.New("catalog error")
	ErrSearch              = errors.New("search error")
	ErrRemoteStore         = errors.New("remote store error")
	ErrMalformedCollection = errors.New("collection is missing required columns")
	ErrWorkerExited        = errors.New("automation worker exited")
	ErrWorkerNotStarted    = errors.New("automation worker not started")
	ErrResultTimeout       = errors.New("timed out waiting for automation result")
	ErrEngine              = errors.New("browser engine error")
)

// WrapErrorf wraps a sentinel with a formatted message
func WrapErrorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 404 ") {
			return "HTTP_404"
		}
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 429 ") {
			return "HTTP_429"
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "price") {
			return "Content_ParsingPrice"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrCatalog):
		return "Input_Catalog"
	case errors.Is(err, ErrSearch):
		return "Search_API"
	case errors.Is(err, ErrRemoteStore):
		return "Remote_Store"
	case errors.Is(err, ErrMalformedCollection):
		return "Cache_Malformed"
	case errors.Is(err, ErrWorkerExited), errors.Is(err, ErrWorkerNotStarted):
		return "Automation_WorkerExited"
	case errors.Is(err, ErrResultTimeout):
		return "Automation_ResultTimeout"
	case errors.Is(err, ErrEngine):
		return "Automation_Engine"
	}

	// --- Fallback checks for common underlying error types/strings ---

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}

	return "Unknown"
}
