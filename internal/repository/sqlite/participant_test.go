package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/msomdec/care-practice/internal/domain"
)

func TestParticipantRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := db.Participants()
	ctx := context.Background()

	p := &domain.Participant{ID: "p-1", Email: "abc123@example.edu", RaterID: "abc123"}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}

	got, err := repo.GetByID(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != "abc123@example.edu" || got.RaterID != "abc123" {
		t.Fatalf("unexpected participant: %+v", got)
	}

	got, err = repo.GetByEmail(ctx, "abc123@example.edu")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != "p-1" {
		t.Fatalf("expected p-1, got %s", got.ID)
	}
}

func TestParticipantRepository_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	repo := db.Participants()
	ctx := context.Background()

	if err := repo.Create(ctx, &domain.Participant{ID: "a", Email: "dup@example.edu", RaterID: "dup"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	err := repo.Create(ctx, &domain.Participant{ID: "b", Email: "dup@example.edu", RaterID: "dup"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParticipantRepository_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := db.Participants()

	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateRaterID(context.Background(), "nope", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParticipantRepository_UpdateRaterID(t *testing.T) {
	db := newTestDB(t)
	repo := db.Participants()
	ctx := context.Background()

	if err := repo.Create(ctx, &domain.Participant{ID: "p", Email: "x@example.edu", RaterID: "x"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdateRaterID(ctx, "p", "rater-7"); err != nil {
		t.Fatalf("UpdateRaterID: %v", err)
	}
	got, err := repo.GetByID(ctx, "p")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.RaterID != "rater-7" {
		t.Fatalf("expected rater-7, got %s", got.RaterID)
	}
}
