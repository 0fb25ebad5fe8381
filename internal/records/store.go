package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"talentvault/internal/database"
	"talentvault/internal/syncengine"
)

var (
	// ErrDuplicateEmail is the expected condition when an insert collides with
	// an existing candidate; the UI offers an overwrite workflow on it.
	ErrDuplicateEmail = errors.New("a candidate with this email already exists")

	// ErrNotFound indicates no candidate exists under the given email.
	ErrNotFound = errors.New("candidate not found")
)

// WriteNotifier receives a signal after every successful write so the backup
// engine can count toward its volume trigger.
type WriteNotifier interface {
	NoteWrite(ctx context.Context)
}

// SearchCriteria is a conjunctive filter; empty fields are ignored.
// ExperienceYears is evaluated in memory after deserialization because it is
// derived from the serialized experience collection.
type SearchCriteria struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	CurrentRole          string `json:"current_role"`
	Phone                string `json:"phone"`
	Industry             string `json:"industry"`
	HighestQualification string `json:"highest_qualification"`
	SpecialSkills        string `json:"special_skills"`
	ExperienceYears      int    `json:"experience_years"`
}

// DashboardStats is the aggregate view served to the dashboard.
type DashboardStats struct {
	TotalCandidates  int64     `json:"total_candidates"`
	UniqueIndustries int64     `json:"unique_industries"`
	AvgExperience    float64   `json:"avg_experience"`
	DatabaseSizeMB   float64   `json:"database_size_mb"`
	LastSyncTime     time.Time `json:"last_sync_time"`
}

// Store exposes CRUD and search over candidate records. Every connection is
// obtained through the sync engine and every successful write requests an
// upload, so remote durability lags a write only by one sync.
type Store struct {
	engine   *syncengine.Engine
	notifier WriteNotifier
	logger   *slog.Logger
}

// NewStore wires the record store to its sync engine. notifier may be nil.
func NewStore(engine *syncengine.Engine, notifier WriteNotifier, logger *slog.Logger) *Store {
	return &Store{
		engine:   engine,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "records")),
	}
}

// SetNotifier attaches the write notifier after construction. The backup
// engine consumes the store's stats, so the two are wired in that order.
func (s *Store) SetNotifier(notifier WriteNotifier) {
	s.notifier = notifier
}

// Insert stores a new candidate. An existing record under the same email is a
// duplicate condition, never an overwrite; the unique index backstops the
// pre-check against races.
func (s *Store) Insert(ctx context.Context, c Candidate) (Candidate, error) {
	if existing, err := s.GetByEmail(ctx, c.Email); err == nil && existing != nil {
		s.logger.Warn("duplicate candidate insert rejected", slog.String("email", c.Email))
		return Candidate{}, ErrDuplicateEmail
	}

	db, err := s.engine.Conn(ctx)
	if err != nil {
		return Candidate{}, err
	}

	now := time.Now()
	row := toRow(c)
	row.ID = 0
	row.CreatedAt = now
	row.UpdatedAt = now

	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return Candidate{}, ErrDuplicateEmail
		}
		return Candidate{}, fmt.Errorf("insert candidate: %w", err)
	}

	s.afterWrite(ctx)
	return fromRow(row), nil
}

// Update replaces all scalar and collection fields of an existing candidate,
// targeted by email. The email itself is immutable through this path.
func (s *Store) Update(ctx context.Context, c Candidate) (Candidate, error) {
	db, err := s.engine.Conn(ctx)
	if err != nil {
		return Candidate{}, err
	}

	var row database.Candidate
	if err := db.WithContext(ctx).Where("email = ?", c.Email).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Candidate{}, ErrNotFound
		}
		return Candidate{}, fmt.Errorf("lookup candidate: %w", err)
	}

	updated := toRow(c)
	updated.ID = row.ID
	updated.Email = row.Email
	updated.CreatedAt = row.CreatedAt
	updated.UpdatedAt = time.Now()

	if err := db.WithContext(ctx).Save(&updated).Error; err != nil {
		return Candidate{}, fmt.Errorf("update candidate: %w", err)
	}

	s.afterWrite(ctx)
	return fromRow(updated), nil
}

// Delete removes the candidate row by email. Follow-on sync is the caller's
// responsibility.
func (s *Store) Delete(ctx context.Context, email string) error {
	db, err := s.engine.Conn(ctx)
	if err != nil {
		return err
	}

	res := db.WithContext(ctx).Where("email = ?", email).Delete(&database.Candidate{})
	if res.Error != nil {
		return fmt.Errorf("delete candidate: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByEmail returns the candidate under the exact email, or (nil, nil).
func (s *Store) GetByEmail(ctx context.Context, email string) (*Candidate, error) {
	db, err := s.engine.Conn(ctx)
	if err != nil {
		return nil, err
	}

	var row database.Candidate
	if err := db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get candidate: %w", err)
	}

	c := fromRow(row)
	return &c, nil
}

// Search applies substring matching on the provided scalar fields, then
// filters derived criteria in memory. Failures degrade to an empty result.
func (s *Store) Search(ctx context.Context, criteria SearchCriteria) []Candidate {
	db, err := s.engine.Conn(ctx)
	if err != nil {
		s.logger.Error("search connection failed", slog.Any("error", err))
		return []Candidate{}
	}

	query := db.WithContext(ctx).Model(&database.Candidate{})
	for column, value := range map[string]string{
		"name":                  criteria.Name,
		"email":                 criteria.Email,
		"current_role":          criteria.CurrentRole,
		"phone":                 criteria.Phone,
		"industry":              criteria.Industry,
		"highest_qualification": criteria.HighestQualification,
		"special_skills":        criteria.SpecialSkills,
	} {
		if value != "" {
			query = query.Where(column+" LIKE ?", "%"+value+"%")
		}
	}

	var rows []database.Candidate
	if err := query.Find(&rows).Error; err != nil {
		s.logger.Error("search query failed", slog.Any("error", err))
		return []Candidate{}
	}

	results := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		c := fromRow(row)
		if criteria.ExperienceYears > 0 && len(c.Experience) < criteria.ExperienceYears {
			continue
		}
		results = append(results, c)
	}
	return results
}

// DashboardStats aggregates counts for the dashboard; rows with malformed
// experience data are skipped, not counted as zero. Errors degrade to zeroed
// stats so the page always renders.
func (s *Store) DashboardStats(ctx context.Context) DashboardStats {
	status := s.engine.Status()
	stats := DashboardStats{
		DatabaseSizeMB: float64(status.LocalDBSize) / (1024 * 1024),
		LastSyncTime:   status.LastSyncTime,
	}

	db, err := s.engine.Conn(ctx)
	if err != nil {
		s.logger.Error("stats connection failed", slog.Any("error", err))
		return stats
	}

	if err := db.WithContext(ctx).Model(&database.Candidate{}).Count(&stats.TotalCandidates).Error; err != nil {
		s.logger.Error("count candidates failed", slog.Any("error", err))
		return stats
	}

	if err := db.WithContext(ctx).Model(&database.Candidate{}).
		Where("industry IS NOT NULL AND industry != ''").
		Distinct("industry").
		Count(&stats.UniqueIndustries).Error; err != nil {
		s.logger.Error("count industries failed", slog.Any("error", err))
	}

	var rows []database.Candidate
	if err := db.WithContext(ctx).Select("experience").Find(&rows).Error; err != nil {
		s.logger.Error("load experience data failed", slog.Any("error", err))
		return stats
	}

	totalEntries, counted := 0, 0
	for _, row := range rows {
		entries := database.DecodeExperience(row.Experience)
		if len(entries) == 0 {
			continue
		}
		totalEntries += len(entries)
		counted++
	}
	if counted > 0 {
		stats.AvgExperience = float64(totalEntries) / float64(counted)
	}
	return stats
}

// afterWrite triggers the upload and backup-counter side effects shared by
// every mutating call. A failed upload leaves the write local-only; it is
// logged and the periodic sync will retry.
func (s *Store) afterWrite(ctx context.Context) {
	if err := s.engine.Upload(ctx, false); err != nil && !errors.Is(err, syncengine.ErrSyncInProgress) {
		s.logger.Warn("post-write sync failed, data persisted locally only", slog.Any("error", err))
	}
	if s.notifier != nil {
		s.notifier.NoteWrite(ctx)
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || strings.Contains(msg, "constraint failed: candidates.email")
}
