package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codetrack/backend/internal/domain"
)

// problemRepository implements domain.ProblemRepository using GORM
type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository creates a new problem repository
func NewProblemRepository(db *gorm.DB) domain.ProblemRepository {
	return &problemRepository{db: db}
}

func (r *problemRepository) preload() *gorm.DB {
	return r.db.Preload("SolvedDates", func(db *gorm.DB) *gorm.DB {
		return db.Order("solved_dates.date ASC")
	})
}

// Create persists a new problem together with its initial solve history
func (r *problemRepository) Create(problem *domain.Problem) error {
	return r.db.Create(problem).Error
}

// FindByID loads a problem and its full solve history
func (r *problemRepository) FindByID(id uuid.UUID) (*domain.Problem, error) {
	var problem domain.Problem
	result := r.preload().Where("id = ?", id).First(&problem)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProblemNotFound
		}
		return nil, result.Error
	}
	return &problem, nil
}

// FindAll returns all problems ordered by creation time
func (r *problemRepository) FindAll() ([]domain.Problem, error) {
	var problems []domain.Problem
	result := r.preload().Order("created_at ASC").Find(&problems)
	return problems, result.Error
}

// Save persists aggregate mutations with an optimistic version check and
// appends any new solve history rows in the same transaction.
func (r *problemRepository) Save(problem *domain.Problem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		loadedVersion := problem.Version
		problem.Version = loadedVersion + 1

		result := tx.Model(&domain.Problem{}).
			Where("id = ? AND version = ?", problem.ID, loadedVersion).
			Updates(map[string]interface{}{
				"title":             problem.Title,
				"pattern":           problem.Pattern,
				"difficulty":        problem.Difficulty,
				"platform":          problem.Platform,
				"link":              problem.Link,
				"notes":             problem.Notes,
				"tags":              problem.Tags,
				"priority":          problem.Priority,
				"revision_interval": problem.RevisionInterval,
				"revision_count":    problem.RevisionCount,
				"last_revised":      problem.LastRevised,
				"total_time_spent":  problem.TotalTimeSpent,
				"average_rating":    problem.AverageRating,
				"version":           problem.Version,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrConflict
		}

		// History is append-only; only rows without an id are new.
		for i := range problem.SolvedDates {
			sd := &problem.SolvedDates[i]
			if sd.ID != uuid.Nil {
				continue
			}
			sd.ProblemID = problem.ID
			if err := tx.Create(sd).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a problem and its solve history. Absent ids are a no-op.
func (r *problemRepository) Delete(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("problem_id = ?", id).Delete(&domain.SolvedDate{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Problem{}).Error
	})
}

// FindByPattern returns all problems with the exact pattern
func (r *problemRepository) FindByPattern(pattern string) ([]domain.Problem, error) {
	var problems []domain.Problem
	result := r.preload().Where("pattern = ?", pattern).Order("created_at ASC").Find(&problems)
	return problems, result.Error
}

// FindByDifficulty returns all problems with the specified difficulty
func (r *problemRepository) FindByDifficulty(difficulty domain.Difficulty) ([]domain.Problem, error) {
	var problems []domain.Problem
	result := r.preload().Where("difficulty = ?", difficulty).Order("created_at ASC").Find(&problems)
	return problems, result.Error
}

// SearchByTitle returns problems whose title contains the given substring,
// case-insensitively
func (r *problemRepository) SearchByTitle(title string) ([]domain.Problem, error) {
	var problems []domain.Problem
	result := r.preload().Where("title ILIKE ?", "%"+title+"%").Order("created_at ASC").Find(&problems)
	return problems, result.Error
}

// FindByTag returns problems carrying the given tag
func (r *problemRepository) FindByTag(tag string) ([]domain.Problem, error) {
	var problems []domain.Problem
	result := r.preload().Where("? = ANY(tags)", tag).Order("created_at ASC").Find(&problems)
	return problems, result.Error
}

// FindNeedingRevision returns problems never revised or last revised before
// the cutoff timestamp
func (r *problemRepository) FindNeedingRevision(cutoff time.Time) ([]domain.Problem, error) {
	var problems []domain.Problem
	result := r.preload().
		Where("last_revised IS NULL OR last_revised < ?", cutoff).
		Order("created_at ASC").
		Find(&problems)
	return problems, result.Error
}
