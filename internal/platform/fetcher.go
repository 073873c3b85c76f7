// Package platform obtains the raw artifacts for one work item from the
// meeting platform: the recording page, the structured call payload embedded
// in it, and the media playlist URL. Session material (cookies) is acquired
// out of band; this package only consumes it.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"

	"meeting-insights-go/internal/logger"
	"meeting-insights-go/internal/types"
)

// Fetcher is the capability the orchestrator needs: given a work item,
// return its platform metadata. Fetch must be idempotent for a given id.
type Fetcher interface {
	Fetch(ctx context.Context, item types.WorkItem) (*types.RawMetadata, error)
}

const payloadSelector = `script[type="application/json"][data-role="call-payload"]`

// callPayload mirrors the JSON blob the platform embeds in the recording
// page. Required fields are enforced later at the reconciliation boundary;
// here everything is optional so a sparse page still yields metadata.
type callPayload struct {
	ID            json.Number         `json:"id"`
	ShareURL      string              `json:"share_url"`
	Title         string              `json:"title"`
	Date          string              `json:"date"`
	Duration      string              `json:"duration"`
	HostName      string              `json:"host_name"`
	CompanyDomain string              `json:"company_domain"`
	Participants  []types.Participant `json:"participants"`
	Summary       *types.Summary      `json:"summary"`
	MediaURL      string              `json:"media_url"`
}

// HTTPFetcher fetches recording pages over HTTP with cookie-based auth.
type HTTPFetcher struct {
	Client       *http.Client
	Cookies      []Cookie
	RetryCeiling time.Duration
	Log          *logger.Logger
}

func NewHTTPFetcher(cookies []Cookie, retryCeiling time.Duration, log *logger.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		Client:       &http.Client{Timeout: 30 * time.Second},
		Cookies:      cookies,
		RetryCeiling: retryCeiling,
		Log:          log,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, item types.WorkItem) (*types.RawMetadata, error) {
	body, err := f.get(ctx, item.URL)
	if err != nil {
		return nil, err
	}

	meta, err := parsePage(body)
	if err != nil {
		return nil, fmt.Errorf("parse page for %s: %w", item.ID, err)
	}

	// work-list identity wins over whatever the page claims
	meta.ID = item.ID
	meta.URL = item.URL
	if meta.Title == "" {
		meta.Title = item.Title
	}
	return meta, nil
}

// get retrieves a URL with bounded retry on transient failures. Auth and
// not-found responses are permanent and surface the taxonomy errors.
func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = f.RetryCeiling

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
		if h := CookieHeader(f.Cookies); h != "" {
			req.Header.Set("Cookie", h)
		}

		resp, err := f.Client.Do(req)
		if err != nil {
			if f.Log != nil {
				f.Log.WithError(err).Warn("page fetch failed, retrying")
			}
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(types.ErrAuthExpired)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(types.ErrNotFound)
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error: HTTP %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("unexpected HTTP %d", resp.StatusCode))
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
		if err != nil {
			return fmt.Errorf("read page body: %w", err)
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func parsePage(page []byte) (*types.RawMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	raw := strings.TrimSpace(doc.Find(payloadSelector).First().Text())
	if raw == "" {
		return nil, fmt.Errorf("call payload script not found")
	}

	var p callPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode call payload: %w", err)
	}

	return &types.RawMetadata{
		ID:            p.ID.String(),
		ShareURL:      p.ShareURL,
		Title:         p.Title,
		Date:          p.Date,
		Duration:      p.Duration,
		HostName:      p.HostName,
		CompanyDomain: p.CompanyDomain,
		Participants:  p.Participants,
		Summary:       p.Summary,
		MediaURL:      p.MediaURL,
		RawPage:       page,
	}, nil
}
