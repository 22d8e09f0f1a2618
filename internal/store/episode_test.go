package store

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestEpisodeRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Episodes()

	ep := &Episode{
		ID:          "ep-1",
		ConfirmedAt: base,
		Hits:        3,
	}
	if err := repo.Create(ep); err != nil {
		t.Fatalf("failed to create episode: %v", err)
	}
	if ep.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}

	got, err := repo.GetByID("ep-1")
	if err != nil {
		t.Fatalf("failed to get episode: %v", err)
	}
	if !got.ConfirmedAt.Equal(base) {
		t.Errorf("ConfirmedAt = %v, want %v", got.ConfirmedAt, base)
	}
	if got.Hits != 3 {
		t.Errorf("Hits = %d, want 3", got.Hits)
	}
	if !got.Active() {
		t.Error("new episode should be active")
	}
	if got.Duration() != 0 {
		t.Errorf("active Duration() = %v, want 0", got.Duration())
	}
}

func TestEpisodeRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Episodes().GetByID("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEpisodeRepository_CreateDuplicate(t *testing.T) {
	s := newTestStore(t)
	repo := s.Episodes()

	if err := repo.Create(&Episode{ID: "dup", ConfirmedAt: base}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(&Episode{ID: "dup", ConfirmedAt: base}); err == nil {
		t.Error("expected primary key violation")
	}
}

func TestEpisodeRepository_Resume(t *testing.T) {
	s := newTestStore(t)
	repo := s.Episodes()

	if err := repo.Create(&Episode{ID: "ep-1", ConfirmedAt: base, Hits: 3}); err != nil {
		t.Fatal(err)
	}

	resumed := base.Add(3 * time.Second)
	if err := repo.Resume("ep-1", resumed); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	got, err := repo.GetByID("ep-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Active() {
		t.Fatal("episode should not be active after resume")
	}
	if !got.ResumedAt.Equal(resumed) {
		t.Errorf("ResumedAt = %v, want %v", got.ResumedAt, resumed)
	}
	if got.Duration() != 3*time.Second {
		t.Errorf("Duration() = %v, want 3s", got.Duration())
	}

	if err := repo.Resume("missing", resumed); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resume(missing) = %v, want ErrNotFound", err)
	}
}

func TestEpisodeRepository_Active(t *testing.T) {
	s := newTestStore(t)
	repo := s.Episodes()

	if _, err := repo.Active(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Active() on empty store = %v, want ErrNotFound", err)
	}

	repo.Create(&Episode{ID: "old", ConfirmedAt: base})
	repo.Resume("old", base.Add(4*time.Second))
	repo.Create(&Episode{ID: "open", ConfirmedAt: base.Add(10 * time.Second)})

	got, err := repo.Active()
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if got.ID != "open" {
		t.Errorf("Active().ID = %q, want open", got.ID)
	}
}

func TestEpisodeRepository_CloseActive(t *testing.T) {
	s := newTestStore(t)
	repo := s.Episodes()

	repo.Create(&Episode{ID: "a", ConfirmedAt: base})
	repo.Create(&Episode{ID: "b", ConfirmedAt: base.Add(time.Minute)})
	repo.Resume("a", base.Add(time.Second))

	n, err := repo.CloseActive(base.Add(time.Hour))
	if err != nil {
		t.Fatalf("CloseActive() error = %v", err)
	}
	if n != 1 {
		t.Errorf("closed %d episodes, want 1", n)
	}
	if _, err := repo.Active(); !errors.Is(err, ErrNotFound) {
		t.Errorf("no episode should remain active, got %v", err)
	}
}

func TestEpisodeRepository_SetSnapshot(t *testing.T) {
	s := newTestStore(t)
	repo := s.Episodes()

	repo.Create(&Episode{ID: "ep-1", ConfirmedAt: base})

	if err := repo.SetSnapshot("ep-1", "snaps/stop_sign_20260314_092653.jpg", ""); err != nil {
		t.Fatalf("SetSnapshot() error = %v", err)
	}
	if err := repo.SetSnapshot("ep-1", "snaps/stop_sign_20260314_092653.jpg", "https://bucket/x.jpg"); err != nil {
		t.Fatalf("SetSnapshot() with url error = %v", err)
	}
	// a later local-only update keeps the uploaded URL
	if err := repo.SetSnapshot("ep-1", "snaps/stop_sign_20260314_092653.jpg", ""); err != nil {
		t.Fatal(err)
	}

	got, _ := repo.GetByID("ep-1")
	if got.SnapshotPath != "snaps/stop_sign_20260314_092653.jpg" {
		t.Errorf("SnapshotPath = %q", got.SnapshotPath)
	}
	if got.SnapshotURL != "https://bucket/x.jpg" {
		t.Errorf("SnapshotURL = %q", got.SnapshotURL)
	}

	if err := repo.SetSnapshot("missing", "p", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetSnapshot(missing) = %v, want ErrNotFound", err)
	}
}

func TestEpisodeRepository_SetHits(t *testing.T) {
	s := newTestStore(t)
	repo := s.Episodes()

	repo.Create(&Episode{ID: "ep-1", ConfirmedAt: base, Hits: 3})
	if err := repo.SetHits("ep-1", 42); err != nil {
		t.Fatal(err)
	}

	got, _ := repo.GetByID("ep-1")
	if got.Hits != 42 {
		t.Errorf("Hits = %d, want 42", got.Hits)
	}
}

func TestEpisodeRepository_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	repo := s.Episodes()

	for i := 0; i < 5; i++ {
		ep := &Episode{
			ID:          fmt.Sprintf("ep-%d", i),
			ConfirmedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ep); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d episodes, want 5", len(all))
	}
	if all[0].ID != "ep-4" || all[4].ID != "ep-0" {
		t.Errorf("order = %s..%s, want ep-4..ep-0", all[0].ID, all[4].ID)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d", len(limited))
	}

	n, err := repo.Count()
	if err != nil || n != 5 {
		t.Errorf("Count() = %d, %v; want 5", n, err)
	}
}

func TestEpisodeRepository_ListEmpty(t *testing.T) {
	s := newTestStore(t)

	episodes, err := s.Episodes().List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(episodes) != 0 {
		t.Errorf("expected no episodes, got %d", len(episodes))
	}
}

func TestEpisodeRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Episodes()

	repo.Create(&Episode{ID: "ep-1", ConfirmedAt: base})

	if err := repo.Delete("ep-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID("ep-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("episode should be gone, got %v", err)
	}
	if err := repo.Delete("ep-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}
}

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	settings := s.Settings()

	if _, err := settings.Get("enabled"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unset) = %v, want ErrNotFound", err)
	}
	if !settings.GetBool("enabled", true) {
		t.Error("GetBool should fall back to default")
	}

	if err := settings.SetBool("enabled", false); err != nil {
		t.Fatal(err)
	}
	if settings.GetBool("enabled", true) {
		t.Error("GetBool should return stored false")
	}

	if err := settings.Set("enabled", "true"); err != nil {
		t.Fatal(err)
	}
	v, err := settings.Get("enabled")
	if err != nil || v != "true" {
		t.Errorf("Get() = %q, %v; want true", v, err)
	}

	settings.Set("enabled", "maybe")
	if !settings.GetBool("enabled", true) {
		t.Error("unparsable value should fall back to default")
	}
}
