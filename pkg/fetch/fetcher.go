package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/utils"
)

// maxBodyBytes caps how much of a product page is read
const maxBodyBytes = 8 << 20

// Page is a fetched response body with its status code
type Page struct {
	URL        string // Final URL after redirects
	StatusCode int
	Body       []byte
}

// Fetcher performs single-attempt GET requests. Failed pairs are retried on the next run, not here
type Fetcher struct {
	client *http.Client
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, log *logrus.Entry) *Fetcher {
	return &Fetcher{client: client, log: log}
}

// Fetch GETs rawURL once.
// A non-2xx answer returns the Page (body drained) together with an error wrapping
// ErrClientHTTPError, ErrServerHTTPError or ErrOtherHTTPError.
// Transport failures, including a 2xx body that cannot be read in full, return a nil Page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, userAgent string) (*Page, error) {
	reqLog := f.log.WithField("url", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reqLog.Debugf("Request aborted: %v", err)
			return nil, err
		}
		reqLog.Warnf("Network error: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	page := &Page{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode}
	resLog := reqLog.WithField("status_code", resp.StatusCode)

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			resLog.Warnf("Body read failed: %v", err)
			return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
		}
		page.Body = body
		resLog.Debug("Fetched")
		return page, nil
	case code >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		resLog.Warn("Server error")
		return page, fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, code, resp.Status)
	case code >= 400:
		_, _ = io.Copy(io.Discard, resp.Body)
		resLog.Debug("Client error")
		return page, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, code, resp.Status)
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		resLog.Warnf("Unexpected status: %d", code)
		return page, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, code, resp.Status)
	}
}
