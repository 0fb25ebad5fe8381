package records

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/datatypes"

	"talentvault/internal/blobstore"
	"talentvault/internal/config"
	"talentvault/internal/database"
	"talentvault/internal/syncengine"
)

type fakeNotifier struct {
	notes int
}

func (n *fakeNotifier) NoteWrite(context.Context) { n.notes++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, *fakeNotifier) {
	t.Helper()
	cfg := config.SyncConfig{
		Bucket:          "appdata",
		ObjectName:      "hr_candidates.db",
		LocalPath:       filepath.Join(t.TempDir(), "hr_candidates.db"),
		Interval:        time.Minute,
		FreshnessWindow: 5 * time.Minute,
	}
	engine, err := syncengine.New(blobstore.NewMemory(), cfg, 5*time.Second, testLogger())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	notifier := &fakeNotifier{}
	return NewStore(engine, notifier, testLogger()), notifier
}

func sampleCandidate(email string) Candidate {
	return Candidate{
		Name:        "Jane Doe",
		Email:       email,
		CurrentRole: "Data Engineer",
		Industry:    "Fintech",
		Skills: []database.SkillEntry{
			{Skill: "Python", Proficiency: 5},
			{Skill: "SQL", Proficiency: 4},
		},
		Experience: []database.ExperienceEntry{
			{Position: "Engineer", Company: "Acme"},
		},
	}
}

func TestInsertRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store, notifier := newTestStore(t)

	if _, err := store.Insert(ctx, sampleCandidate("jane@example.com")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if notifier.notes != 1 {
		t.Fatalf("expected 1 write notification, got %d", notifier.notes)
	}

	_, err := store.Insert(ctx, sampleCandidate("jane@example.com"))
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if notifier.notes != 1 {
		t.Fatalf("failed insert must not notify, got %d", notifier.notes)
	}
}

func TestInsertRoundTripsCollections(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if _, err := store.Insert(ctx, sampleCandidate("jane@example.com")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.GetByEmail(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("candidate not found")
	}
	if len(got.Skills) != 2 || got.Skills[0].Skill != "Python" || got.Skills[0].Proficiency != 5 {
		t.Fatalf("skills did not round-trip: %+v", got.Skills)
	}
	if len(got.Experience) != 1 || got.Experience[0].Company != "Acme" {
		t.Fatalf("experience did not round-trip: %+v", got.Experience)
	}
}

func TestUpdatePreservesIdentity(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	created, err := store.Insert(ctx, sampleCandidate("jane@example.com"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	changed := sampleCandidate("jane@example.com")
	changed.CurrentRole = "Staff Engineer"
	updated, err := store.Update(ctx, changed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID {
		t.Fatalf("update changed id: %d -> %d", created.ID, updated.ID)
	}
	if updated.CurrentRole != "Staff Engineer" {
		t.Fatalf("update did not apply: %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("update changed created_at")
	}
}

func TestUpdateMissingCandidate(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Update(context.Background(), sampleCandidate("ghost@example.com"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMissingCandidate(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Delete(context.Background(), "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByEmailMissingIsNilNil(t *testing.T) {
	store, _ := newTestStore(t)
	got, err := store.GetByEmail(context.Background(), "ghost@example.com")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", got, err)
	}
}

func TestSearchExperienceYearsFilter(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	for i, entries := range []int{1, 2, 3} {
		c := sampleCandidate(string(rune('a'+i)) + "@example.com")
		c.Experience = nil
		for j := 0; j < entries; j++ {
			c.Experience = append(c.Experience, database.ExperienceEntry{Position: "Role", Company: "Co"})
		}
		if _, err := store.Insert(ctx, c); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	results := store.Search(ctx, SearchCriteria{ExperienceYears: 2})
	if len(results) != 2 {
		t.Fatalf("expected 2 candidates with >= 2 positions, got %d", len(results))
	}
	for _, c := range results {
		if len(c.Experience) < 2 {
			t.Fatalf("filter let through candidate with %d positions", len(c.Experience))
		}
	}
}

func TestSearchSubstringMatch(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if _, err := store.Insert(ctx, sampleCandidate("jane@example.com")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	other := sampleCandidate("john@example.com")
	other.Name = "John Roe"
	other.Industry = "Healthcare"
	if _, err := store.Insert(ctx, other); err != nil {
		t.Fatalf("insert: %v", err)
	}

	results := store.Search(ctx, SearchCriteria{Industry: "fin"})
	if len(results) != 1 || results[0].Email != "jane@example.com" {
		t.Fatalf("unexpected search results: %+v", results)
	}

	if results := store.Search(ctx, SearchCriteria{Name: "Roe", Industry: "Fintech"}); len(results) != 0 {
		t.Fatalf("conjunctive filter should exclude all, got %+v", results)
	}
}

func TestDashboardStatsSkipsMalformedExperience(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	c := sampleCandidate("jane@example.com")
	c.Experience = []database.ExperienceEntry{{Company: "A"}, {Company: "B"}}
	if _, err := store.Insert(ctx, c); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Write a malformed experience column directly, below the codec.
	db, err := store.engine.Conn(ctx)
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	bad := database.Candidate{
		Name:       "Broken Row",
		Email:      "broken@example.com",
		Experience: datatypes.JSON("this is not json"),
	}
	if err := db.Create(&bad).Error; err != nil {
		t.Fatalf("insert malformed row: %v", err)
	}

	stats := store.DashboardStats(ctx)
	if stats.TotalCandidates != 2 {
		t.Fatalf("expected 2 candidates, got %d", stats.TotalCandidates)
	}
	if stats.AvgExperience != 2 {
		t.Fatalf("malformed row should be skipped from the average, got %v", stats.AvgExperience)
	}
}
