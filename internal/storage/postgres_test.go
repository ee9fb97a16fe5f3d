package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Runs only against a real database:
// CREATORSWIPE_TEST_POSTGRES_DSN=postgres://... go test ./internal/storage
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("CREATORSWIPE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CREATORSWIPE_TEST_POSTGRES_DSN not set")
	}

	p, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer p.Close()

	id := uuid.NewString()
	r := testRecord(id, time.Now().UTC().Truncate(time.Microsecond))
	if err := p.SaveProfile(r); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	t.Cleanup(func() { p.db.Exec(`DELETE FROM profiles WHERE id = $1`, id) })

	got, err := p.GetProfile(id)
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Name != r.Name || len(got.Tags) != 2 || !got.CreatedAt.Equal(r.CreatedAt) {
		t.Errorf("GetProfile = %+v, want %+v", got, r)
	}

	if _, err := p.GetProfile(uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProfile(missing) err = %v, want ErrNotFound", err)
	}

	all, err := p.ListProfiles(0, 0)
	if err != nil {
		t.Fatalf("ListProfiles: %v", err)
	}
	if len(all) == 0 || all[len(all)-1].ID != r.ID {
		t.Errorf("last listed profile is not the one just saved")
	}
}

func TestOpenPostgres_EmptyDSN(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), ""); err == nil {
		t.Error("OpenPostgres(\"\") err = nil")
	}
}
