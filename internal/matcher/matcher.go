// Package matcher ranks existing project ideas by similarity to a new one,
// using a chat model when available and a deterministic fallback otherwise.
package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
)

const DefaultSeed = 42

var (
	ErrEmptyIdea = errors.New("new idea is empty")
	ErrNoModel   = errors.New("no model configured and fallback disabled")
)

// Idea is one existing project idea and its author.
type Idea struct {
	Username string `json:"username"`
	Idea     string `json:"idea"`
}

// Ranking is an idea with its similarity (0-100) to the new idea.
type Ranking struct {
	Username   string  `json:"username"`
	Idea       string  `json:"idea"`
	Similarity float64 `json:"similarity"`
}

// Chat sends a single user prompt to a model and returns the reply text.
type Chat interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	// UseFallback enables seeded pseudo-random rankings when the model is
	// missing or fails.
	UseFallback bool
	Seed        int64
}

type Matcher struct {
	chat   Chat
	opts   Options
	logger *slog.Logger
}

// New creates a Matcher. chat may be nil.
func New(chat Chat, opts Options) *Matcher {
	return &Matcher{chat: chat, opts: opts, logger: slog.Default()}
}

func (m *Matcher) WithLogger(l *slog.Logger) *Matcher {
	m.logger = l
	return m
}

// HasModel reports whether a chat model is configured.
func (m *Matcher) HasModel() bool { return m.chat != nil }

// Rank orders ideas by similarity to newIdea, highest first.
func (m *Matcher) Rank(ctx context.Context, ideas []Idea, newIdea string) ([]Ranking, error) {
	newIdea = strings.TrimSpace(newIdea)
	if newIdea == "" {
		return nil, ErrEmptyIdea
	}
	if len(ideas) == 0 {
		return []Ranking{}, nil
	}

	if m.chat == nil {
		if !m.opts.UseFallback {
			return nil, ErrNoModel
		}
		m.logger.Debug("no model configured, using fallback rankings")
		return fallbackRankings(ideas, m.opts.Seed), nil
	}

	rankings, err := m.modelRankings(ctx, ideas, newIdea)
	if err != nil {
		if !m.opts.UseFallback {
			return nil, err
		}
		m.logger.Warn("model ranking failed, using fallback", "error", err)
		return fallbackRankings(ideas, m.opts.Seed), nil
	}
	return rankings, nil
}

func (m *Matcher) modelRankings(ctx context.Context, ideas []Idea, newIdea string) ([]Ranking, error) {
	reply, err := m.chat.Complete(ctx, buildPrompt(ideas, newIdea))
	if err != nil {
		return nil, fmt.Errorf("model request: %w", err)
	}
	return parseRankings(reply, ideas)
}

func buildPrompt(ideas []Idea, newIdea string) string {
	var list strings.Builder
	for i, idea := range ideas {
		fmt.Fprintf(&list, "%d. %s: %s\n", i+1, idea.Username, idea.Idea)
	}
	n := len(ideas)
	return fmt.Sprintf(`You are an expert at analyzing hackathon ideas and finding similarities between them.

Here are %d existing hackathon ideas:
%s
New idea to compare against: %q

Please rank each of the %d existing ideas based on how similar they are to the new idea. Consider factors like:
- Problem domain similarity
- Technology stack overlap
- Target audience alignment
- Implementation approach similarity
- Overall concept relatedness

For each idea, provide a similarity percentage (0-100%%) and respond in this exact JSON format:

[
  {"username": "username1", "similarity": 85},
  {"username": "username2", "similarity": 72}
]

Sort by similarity percentage (highest first). Only return the JSON array, no other text.`, n, list.String(), newIdea, n)
}

// parseRankings decodes the model reply and joins it back to ideas.
// Usernames the model invented are dropped.
func parseRankings(reply string, ideas []Idea) ([]Ranking, error) {
	s := strings.TrimSpace(reply)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in model reply")
	}

	var raw []struct {
		Username   string   `json:"username"`
		Similarity *float64 `json:"similarity"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decoding model reply: %w", err)
	}

	byUser := make(map[string]string, len(ideas))
	for _, idea := range ideas {
		byUser[idea.Username] = idea.Idea
	}

	out := make([]Ranking, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		text, ok := byUser[r.Username]
		if !ok || seen[r.Username] {
			continue
		}
		if r.Similarity == nil {
			return nil, fmt.Errorf("model reply for %q has no similarity", r.Username)
		}
		seen[r.Username] = true
		out = append(out, Ranking{
			Username:   r.Username,
			Idea:       text,
			Similarity: min(max(*r.Similarity, 0), 100),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, nil
}

// fallbackRankings assigns each idea a similarity in [10, 95] from a
// generator seeded with seed, so identical inputs give identical output.
func fallbackRankings(ideas []Idea, seed int64) []Ranking {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Ranking, len(ideas))
	for i, idea := range ideas {
		out[i] = Ranking{
			Username:   idea.Username,
			Idea:       idea.Idea,
			Similarity: float64(10 + rng.Intn(86)),
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}
