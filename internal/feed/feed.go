// Package feed builds the ordered sequence of profiles a user browses:
// locally created records followed by records from a remote listing.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kalambet/creatorswipe/internal/profile"
)

// DefaultFetchTimeout bounds the single listing fetch performed by Load.
const DefaultFetchTimeout = 5 * time.Second

// Feed is an ordered, session-scoped sequence of profiles.
type Feed []profile.Record

// Concat returns local followed by remote, preserving each side's order.
// The result never aliases either input.
func Concat(local, remote []profile.Record) Feed {
	out := make(Feed, 0, len(local)+len(remote))
	for _, r := range local {
		out = append(out, r.Clone())
	}
	for _, r := range remote {
		out = append(out, r.Clone())
	}
	return out
}

// Fetcher retrieves the remote part of a feed.
type Fetcher interface {
	FetchProfiles(ctx context.Context) ([]profile.Record, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) ([]profile.Record, error)

func (f FetcherFunc) FetchProfiles(ctx context.Context) ([]profile.Record, error) {
	return f(ctx)
}

// Source loads feeds. A failed fetch never fails Load: the caller gets the
// local records alone and the failure is logged.
type Source struct {
	fetcher Fetcher
	timeout time.Duration
	logger  *slog.Logger
}

// NewSource creates a Source. If timeout is <= 0, DefaultFetchTimeout is used.
// A nil fetcher yields local-only feeds.
func NewSource(fetcher Fetcher, timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Source{
		fetcher: fetcher,
		timeout: timeout,
		logger:  slog.Default(),
	}
}

// WithLogger returns a copy of s that reports fetch failures to l.
func (s *Source) WithLogger(l *slog.Logger) *Source {
	cp := *s
	cp.logger = l
	return &cp
}

// Load issues one fetch and returns local ++ remote. local is not modified.
func (s *Source) Load(ctx context.Context, local []profile.Record) Feed {
	if s.fetcher == nil {
		return Concat(local, nil)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	remote, err := s.fetcher.FetchProfiles(fetchCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			var fe *FetchError
			if !errors.As(err, &fe) {
				err = &FetchError{Kind: KindTimeout, Err: err}
			}
		}
		var url string
		if fe := (*FetchError)(nil); errors.As(err, &fe) {
			url = fe.URL
		}
		s.logger.Warn("feed fetch failed, using local profiles only",
			"error", err,
			"url", url,
			"local_count", len(local),
		)
		return Concat(local, nil)
	}

	s.logger.Debug("feed loaded", "local_count", len(local), "remote_count", len(remote))
	return Concat(local, remote)
}
