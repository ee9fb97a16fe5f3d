// Package relay records swipe decisions and fans them out to downstream
// consumers through the SQLite job queue.
package relay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/creatorswipe/internal/storage"
	"github.com/kalambet/creatorswipe/internal/swipe"
)

// JobType is the job queue type used for decision fan-out.
const JobType = "decision_relay"

// Event is the payload published for every recorded decision.
type Event struct {
	ID        string         `json:"id"`
	ProfileID string         `json:"profileId"`
	Decision  swipe.Decision `json:"decision"`
	SessionID string         `json:"sessionId,omitempty"`
	At        time.Time      `json:"at"`
}

// DecisionStore persists decisions and queues relay jobs.
type DecisionStore interface {
	SaveDecision(d storage.Decision) error
	EnqueueJob(job storage.Job) error
}

// Recorder persists decisions and schedules their relay.
type Recorder struct {
	store  DecisionStore
	newID  func() string
	logger *slog.Logger
}

func NewRecorder(store DecisionStore) *Recorder {
	return &Recorder{store: store, newID: uuid.NewString, logger: slog.Default()}
}

// WithLogger sets the logger used for delivery failures.
func (r *Recorder) WithLogger(l *slog.Logger) *Recorder {
	r.logger = l
	return r
}

// Record saves ev and enqueues a relay job for it.
func (r *Recorder) Record(ev swipe.DecisionEvent, sessionID string) (Event, error) {
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	out := Event{
		ID:        r.newID(),
		ProfileID: ev.ProfileID,
		Decision:  ev.Decision,
		SessionID: sessionID,
		At:        at,
	}

	err := r.store.SaveDecision(storage.Decision{
		ID:        out.ID,
		ProfileID: out.ProfileID,
		Decision:  string(out.Decision),
		SessionID: out.SessionID,
		CreatedAt: out.At,
	})
	if err != nil {
		return Event{}, fmt.Errorf("saving decision: %w", err)
	}

	payload, err := json.Marshal(out)
	if err != nil {
		return Event{}, fmt.Errorf("encoding relay payload: %w", err)
	}
	if err := r.store.EnqueueJob(storage.Job{ID: r.newID(), Type: JobType, PayloadJSON: string(payload)}); err != nil {
		return Event{}, fmt.Errorf("enqueueing relay job: %w", err)
	}

	r.logger.Debug("decision recorded", "decision_id", out.ID, "profile_id", out.ProfileID, "decision", out.Decision)
	return out, nil
}

// Deliver implements swipe.Sink for decisions made outside a session.
func (r *Recorder) Deliver(ev swipe.DecisionEvent) {
	r.deliver(ev, "")
}

// ForSession returns a sink that tags every decision with sessionID.
func (r *Recorder) ForSession(sessionID string) swipe.Sink {
	return swipe.SinkFunc(func(ev swipe.DecisionEvent) {
		r.deliver(ev, sessionID)
	})
}

func (r *Recorder) deliver(ev swipe.DecisionEvent, sessionID string) {
	if _, err := r.Record(ev, sessionID); err != nil {
		r.logger.Error("decision delivery failed", "profile_id", ev.ProfileID, "session_id", sessionID, "error", err)
	}
}
