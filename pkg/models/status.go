package models

import "strconv"

// StatusKind classifies the outcome of a (product, competitor) pair
type StatusKind string

const (
	StatusUnset               StatusKind = ""                     // Zero value = not yet resolved
	StatusSuccess             StatusKind = "success"              // Extractor returned name and price with 200
	StatusNotFound            StatusKind = "not_found"            // Page or product elements not found
	StatusTimeout             StatusKind = "timeout"              // Page wait or result collection timed out
	StatusEngineError         StatusKind = "engine_error"         // Browser engine failure
	StatusHTTPError           StatusKind = "http_error"           // Any other non-2xx HTTP answer (see Code)
	StatusSearchFailed        StatusKind = "search_failed"        // Search collaborator errored
	StatusNoURL               StatusKind = "no_url"               // No URL could be found or scraped
	StatusVerificationPending StatusKind = "verification_pending" // Pair parked for manual review without URL
	StatusRequiresBrowser     StatusKind = "requires_browser"     // Non-terminal: must go to the automation worker
	StatusInternalError       StatusKind = "internal_error"       // Internal failure (see Reason)
	StatusCancelled           StatusKind = "cancelled"            // Run was stopped before the pair finished
)

// Reasons carried by StatusInternalError
const (
	ReasonRequestError     = "RequestError"
	ReasonUnknownError     = "UnknownError"
	ReasonLocalLookupError = "LocalLookupError"
	ReasonInvalidTaskData  = "InvalidTaskData"
	ReasonWorkerLoopError  = "WorkerLoopError"
	ReasonProcessingError  = "ProcessingError"
	ReasonPanic            = "Panic"
)

// Status is the closed outcome of a pair. Code holds the HTTP-like code when one applies
type Status struct {
	Kind   StatusKind `json:"kind"`
	Code   int        `json:"code,omitempty"`
	Reason string     `json:"reason,omitempty"`
	Detail string     `json:"detail,omitempty"`
}

// Success returns the success status (code 200)
func Success() Status { return Status{Kind: StatusSuccess, Code: 200} }

// HTTPStatus maps an HTTP status code onto the closed status set
func HTTPStatus(code int) Status {
	switch code {
	case 200:
		return Success()
	case 404:
		return Status{Kind: StatusNotFound, Code: code}
	case 408:
		return Status{Kind: StatusTimeout, Code: code}
	}
	return Status{Kind: StatusHTTPError, Code: code}
}

// NotFound reports missing product elements on a fetched page
func NotFound(detail string) Status {
	return Status{Kind: StatusNotFound, Code: 404, Detail: detail}
}

// Timeout reports a page wait or result collection timeout
func Timeout(detail string) Status {
	return Status{Kind: StatusTimeout, Code: 408, Detail: detail}
}

// EngineError reports a browser engine failure
func EngineError(detail string) Status {
	return Status{Kind: StatusEngineError, Code: 503, Detail: detail}
}

// SearchFailed reports a search collaborator error
func SearchFailed(detail string) Status {
	return Status{Kind: StatusSearchFailed, Detail: detail}
}

// NoURL reports that search found nothing for the pair
func NoURL() Status { return Status{Kind: StatusNoURL} }

// WorkerNotReady reports a browser pair that could not be handed to the automation worker
func WorkerNotReady() Status {
	return Status{Kind: StatusNoURL, Detail: "automation worker not ready"}
}

// VerificationPending reports a pair parked in the verification queue without URL
func VerificationPending() Status { return Status{Kind: StatusVerificationPending} }

// RequiresBrowser marks a pair to be forwarded to the automation worker
func RequiresBrowser() Status { return Status{Kind: StatusRequiresBrowser} }

// Cancelled reports a pair abandoned because the run was stopped.
// It is never queued for verification, so the next run retries the pair from scratch
func Cancelled(detail string) Status { return Status{Kind: StatusCancelled, Detail: detail} }

// Internal builds an internal error status with the given reason
func Internal(reason, detail string) Status {
	return Status{Kind: StatusInternalError, Reason: reason, Detail: detail}
}

// IsSuccess reports whether the extractor succeeded
func (s Status) IsSuccess() bool { return s.Kind == StatusSuccess }

// IsTerminal reports whether the status ends the pair within this run
func (s Status) IsTerminal() bool {
	return s.Kind != StatusUnset && s.Kind != StatusRequiresBrowser
}

// IsValid returns true if the kind is a known value
func (s Status) IsValid() bool {
	switch s.Kind {
	case StatusSuccess, StatusNotFound, StatusTimeout, StatusEngineError, StatusHTTPError,
		StatusSearchFailed, StatusNoURL, StatusVerificationPending, StatusRequiresBrowser, StatusInternalError, StatusCancelled:
		return true
	}
	return false
}

// Label renders the status the way it appears in exports and the verification sheet.
// It never carries free-form detail, so it is safe as a count key or metric label
func (s Status) Label() string {
	switch s.Kind {
	case StatusSuccess, StatusNotFound, StatusTimeout, StatusEngineError, StatusHTTPError:
		if s.Code != 0 {
			return strconv.Itoa(s.Code)
		}
		return string(s.Kind)
	case StatusSearchFailed:
		return "Serper API Error"
	case StatusNoURL:
		if s.Detail != "" {
			return "No URL To Scrape"
		}
		return "Serper Not Found"
	case StatusVerificationPending:
		return "Verification No URL"
	case StatusRequiresBrowser:
		return "Requires Browser"
	case StatusInternalError:
		return s.Reason
	case StatusCancelled:
		return "Cancelled"
	}
	return "unset"
}

// String implements fmt.Stringer for logging
func (s Status) String() string {
	if s.Detail != "" {
		return s.Label() + " (" + s.Detail + ")"
	}
	return s.Label()
}

// Source records how a competitor URL was found
type Source string

const (
	SourceNone         Source = ""
	SourceVerification Source = "verification"
	SourceCache        Source = "cache"
	SourceSearch       Source = "search"
)

// Label renders the source as shown in logs
func (s Source) Label() string {
	switch s {
	case SourceVerification:
		return "URL From Verification"
	case SourceCache:
		return "URL From Cache"
	case SourceSearch:
		return "URL From Serper"
	}
	return "none"
}
