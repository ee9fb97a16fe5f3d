package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kalambet/creatorswipe/internal/profile"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id string, created time.Time) profile.Record {
	return profile.Record{
		ID:          profile.ID(id),
		Name:        "Name " + id,
		Project:     "Project " + id,
		Description: "Description " + id,
		Tags:        []string{"go", "video"},
		CreatedAt:   created,
	}
}

// TestMigrationsIdempotent opens the same database twice and checks that no
// migration is applied a second time.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	want := []int{1, 2, 3}
	if fmt.Sprint(versions) != fmt.Sprint(want) {
		t.Errorf("versions = %v, want %v", versions, want)
	}
}

func TestSaveAndGetProfile(t *testing.T) {
	s := openTestStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	r := testRecord("p1", created)
	r.VideoURL = "https://cdn.example.com/p1.mp4"
	if err := s.SaveProfile(r); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	got, err := s.GetProfile("p1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.ID != "p1" || got.Name != r.Name || got.Project != r.Project || got.Description != r.Description {
		t.Errorf("GetProfile = %+v, want %+v", got, r)
	}
	if got.VideoURL != r.VideoURL {
		t.Errorf("VideoURL = %q, want %q", got.VideoURL, r.VideoURL)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "video" {
		t.Errorf("Tags = %v, want [go video]", got.Tags)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetProfile("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveProfile_DuplicateID(t *testing.T) {
	s := openTestStore(t)
	r := testRecord("dup", time.Now())
	if err := s.SaveProfile(r); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if err := s.SaveProfile(r); err == nil {
		t.Error("second SaveProfile with same id succeeded")
	}
}

func TestSaveProfile_NilTags(t *testing.T) {
	s := openTestStore(t)
	r := testRecord("nt", time.Now())
	r.Tags = nil
	if err := s.SaveProfile(r); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	got, err := s.GetProfile("nt")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("Tags = %#v, want empty non-nil slice", got.Tags)
	}
}

func TestListProfiles_InsertionOrder(t *testing.T) {
	s := openTestStore(t)
	// Same timestamp for every record: order must come from insertion.
	now := time.Now()
	for _, id := range []string{"c", "a", "b"} {
		if err := s.SaveProfile(testRecord(id, now)); err != nil {
			t.Fatalf("SaveProfile(%s): %v", id, err)
		}
	}

	all, err := s.ListProfiles(0, 0)
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	var ids []string
	for _, r := range all {
		ids = append(ids, string(r.ID))
	}
	if fmt.Sprint(ids) != "[c a b]" {
		t.Errorf("ids = %v, want [c a b]", ids)
	}

	page, err := s.ListProfiles(1, 1)
	if err != nil {
		t.Fatalf("ListProfiles(1,1): %v", err)
	}
	if len(page) != 1 || page[0].ID != "a" {
		t.Errorf("page = %v, want [a]", page)
	}
}

func TestListProfiles_Empty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.ListProfiles(10, 0)
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ListProfiles = %#v, want empty non-nil slice", got)
	}
}

func TestDecisions(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	decisions := []Decision{
		{ID: "d1", ProfileID: "p1", Decision: "like", CreatedAt: base},
		{ID: "d2", ProfileID: "p1", Decision: "reject", SessionID: "s1", CreatedAt: base.Add(time.Second)},
		{ID: "d3", ProfileID: "p1", Decision: "like", CreatedAt: base.Add(2 * time.Second)},
		{ID: "d4", ProfileID: "p2", Decision: "reject", CreatedAt: base.Add(3 * time.Second)},
	}
	for _, d := range decisions {
		if err := s.SaveDecision(d); err != nil {
			t.Fatalf("SaveDecision(%s): %v", d.ID, err)
		}
	}

	got, err := s.ListDecisions(2, 0)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(got) != 2 || got[0].ID != "d4" || got[1].ID != "d3" {
		t.Errorf("ListDecisions(2,0) = %+v, want d4, d3", got)
	}

	older, err := s.ListDecisions(10, 2)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	if len(older) != 2 || older[0].SessionID != "s1" {
		t.Errorf("ListDecisions(10,2) = %+v, want d2, d1", older)
	}

	counts, err := s.DecisionCounts("p1")
	if err != nil {
		t.Fatalf("DecisionCounts: %v", err)
	}
	if counts.Likes != 2 || counts.Rejects != 1 {
		t.Errorf("counts = %+v, want 2 likes 1 reject", counts)
	}

	none, err := s.DecisionCounts("nobody")
	if err != nil {
		t.Fatalf("DecisionCounts: %v", err)
	}
	if none != (DecisionCounts{}) {
		t.Errorf("counts = %+v, want zero", none)
	}
}

func TestSaveDecision_RejectsUnknownValue(t *testing.T) {
	s := openTestStore(t)
	err := s.SaveDecision(Decision{ID: "bad", ProfileID: "p1", Decision: "maybe", CreatedAt: time.Now()})
	if err == nil {
		t.Error("SaveDecision accepted an unknown decision value")
	}
}

func TestEnqueueAndClaimJob(t *testing.T) {
	s := openTestStore(t)

	job := Job{ID: "j1", Type: "decision_relay", PayloadJSON: `{"profileId":"p1"}`}
	if err := s.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"decision_relay"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != "j1" || got.PayloadJSON != job.PayloadJSON {
		t.Errorf("job = %+v, want %+v", got, job)
	}
	if got.Status != "running" {
		t.Errorf("Status = %q, want running", got.Status)
	}
	if got.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", got.MaxAttempts)
	}

	again, err := s.ClaimNextJob([]string{"decision_relay"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if again != nil {
		t.Errorf("running job claimed twice: %+v", again)
	}
}

func TestClaimNextJob_Filters(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "future", Type: "a", PayloadJSON: `{}`, RunAfter: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := s.EnqueueJob(Job{ID: "other", Type: "b", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := s.ClaimNextJob([]string{"a"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("claimed %+v, want nothing", got)
	}

	if got, _ := s.ClaimNextJob(nil); got != nil {
		t.Errorf("ClaimNextJob(nil) = %+v, want nil", got)
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "jc", Type: "x", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.CompleteJob("jc"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	var status string
	if err := s.db.QueryRow(`SELECT status FROM jobs WHERE id = 'jc'`).Scan(&status); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if status != "completed" {
		t.Errorf("status = %q, want completed", status)
	}
	if err := s.CompleteJob("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteJob(nope) err = %v, want ErrNotFound", err)
	}
}

func TestFailJob(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "jf", Type: "x", PayloadJSON: `{}`, MaxAttempts: 2}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob([]string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}

	before := time.Now().UTC()
	if err := s.FailJob("jf", "redis down"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	var status, lastError, runAfterStr string
	var attempts int
	row := s.db.QueryRow(`SELECT status, attempts, last_error, run_after FROM jobs WHERE id = 'jf'`)
	if err := row.Scan(&status, &attempts, &lastError, &runAfterStr); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if status != "pending" || attempts != 1 || lastError != "redis down" {
		t.Errorf("after first failure: status=%q attempts=%d last_error=%q", status, attempts, lastError)
	}
	runAfter, err := time.Parse(time.RFC3339, runAfterStr)
	if err != nil {
		t.Fatalf("parsing run_after: %v", err)
	}
	if !runAfter.After(before) {
		t.Errorf("run_after %v should be after %v", runAfter, before)
	}

	if err := s.FailJob("jf", "still down"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if err := s.db.QueryRow(`SELECT status FROM jobs WHERE id = 'jf'`).Scan(&status); err != nil {
		t.Fatalf("SELECT: %v", err)
	}
	if status != "failed" {
		t.Errorf("status = %q, want failed", status)
	}

	if err := s.FailJob("nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FailJob(nope) err = %v, want ErrNotFound", err)
	}
}
