package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kalambet/creatorswipe/internal/profile"
)

const maxListingSize = 5 << 20 // 5MB

// Kinds of FetchError.
const (
	KindTransport = "transport"
	KindStatus    = "status"
	KindDecode    = "decode"
	KindTimeout   = "timeout"
)

// FetchError describes why the remote listing could not be used.
type FetchError struct {
	URL        string
	Kind       string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("feed fetch %s: unexpected status %d", e.URL, e.StatusCode)
	default:
		if e.URL == "" {
			return fmt.Sprintf("feed fetch (%s): %v", e.Kind, e.Err)
		}
		return fmt.Sprintf("feed fetch %s (%s): %v", e.URL, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPFetcher reads a JSON array of profiles from a listing endpoint.
type HTTPFetcher struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPFetcher creates a fetcher for url. A nil client uses http.DefaultClient;
// the timeout is applied by Source through the request context.
func NewHTTPFetcher(url string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{
		url:        url,
		httpClient: client,
		logger:     slog.Default(),
	}
}

// URL returns the listing endpoint.
func (f *HTTPFetcher) URL() string { return f.url }

// FetchProfiles performs a single GET. Records that fail validation are
// dropped and logged rather than failing the whole listing.
func (f *HTTPFetcher) FetchProfiles(ctx context.Context) ([]profile.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &FetchError{URL: f.url, Kind: KindTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		kind := KindTransport
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return nil, &FetchError{URL: f.url, Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: f.url, Kind: KindStatus, StatusCode: resp.StatusCode}
	}

	var records []profile.Record
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListingSize)).Decode(&records); err != nil {
		kind := KindDecode
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return nil, &FetchError{URL: f.url, Kind: kind, Err: err}
	}

	valid := records[:0]
	for _, r := range records {
		if err := profile.CheckRecord(r); err != nil {
			f.logger.Warn("dropping invalid remote profile", "id", r.ID, "error", err)
			continue
		}
		if r.Tags == nil {
			r.Tags = []string{}
		}
		valid = append(valid, r)
	}
	return valid, nil
}
