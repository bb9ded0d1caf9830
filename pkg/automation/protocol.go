// Package automation runs the browser-backed extractor in a separate worker
// process and talks to it over newline-delimited JSON on stdin/stdout.
package automation

import (
	"github.com/Sriram-PR/price-reconciler/pkg/models"
)

// Task is one page to read, sent to the worker. Stop marks the termination sentinel
type Task struct {
	ID      string `json:"id,omitempty"`
	URL     string `json:"url,omitempty"`
	Product string `json:"product,omitempty"`
	Stop    bool   `json:"stop,omitempty"`
}

// StopTask returns the termination sentinel
func StopTask() Task { return Task{Stop: true} }

// valid reports whether the task carries everything the worker needs
func (t Task) valid() bool {
	return t.ID != "" && t.URL != "" && t.Product != ""
}

// Result is what the worker emits for every task it reads (including malformed ones)
type Result struct {
	ID      string            `json:"id"`
	Status  models.StatusKind `json:"status"`
	Code    int               `json:"code,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	Detail  string            `json:"detail,omitempty"`
	Name    string            `json:"name,omitempty"`
	Price   *float64          `json:"price,omitempty"`
	URL     string            `json:"url,omitempty"`
	Domain  string            `json:"domain"`
	Product string            `json:"product,omitempty"`
}

// StatusValue rebuilds the typed status carried by the result
func (r Result) StatusValue() models.Status {
	return models.Status{Kind: r.Status, Code: r.Code, Reason: r.Reason, Detail: r.Detail}
}

func (r *Result) setStatus(s models.Status) {
	r.Status, r.Code, r.Reason, r.Detail = s.Kind, s.Code, s.Reason, s.Detail
}
