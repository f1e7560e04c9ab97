package data

import (
	_ "embed"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codetrack/backend/internal/domain"
)

//go:embed sample_problems.json
var sampleProblemsData []byte

// problemJSON represents the JSON structure for sample problems
type problemJSON struct {
	Title            string   `json:"title"`
	Pattern          string   `json:"pattern"`
	Difficulty       string   `json:"difficulty"`
	Platform         string   `json:"platform"`
	Link             string   `json:"link"`
	Tags             []string `json:"tags"`
	Priority         string   `json:"priority"`
	RevisionInterval int      `json:"revision_interval"`
}

// Seeder handles database seeding operations
type Seeder struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSeeder creates a new database seeder
func NewSeeder(db *gorm.DB, logger *zap.Logger) *Seeder {
	return &Seeder{
		db:     db,
		logger: logger,
	}
}

// SeedSampleProblems fills an empty problems table with a small practice set
// so a fresh development environment has data to show. Each seeded problem
// gets the first_solve history entry a created problem always carries.
func (s *Seeder) SeedSampleProblems() error {
	var count int64
	if err := s.db.Model(&domain.Problem{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		s.logger.Info("Problems table not empty, skipping sample data",
			zap.Int64("count", count),
		)
		return nil
	}

	problems, err := SampleProblems()
	if err != nil {
		return err
	}

	if err := s.db.CreateInBatches(problems, 50).Error; err != nil {
		return err
	}

	s.logger.Info("Seeded sample problems",
		zap.Int("count", len(problems)),
	)

	return nil
}

// SampleProblems returns the embedded sample problem set as fresh aggregates
func SampleProblems() ([]domain.Problem, error) {
	var problemsJSON []problemJSON
	if err := json.Unmarshal(sampleProblemsData, &problemsJSON); err != nil {
		return nil, err
	}

	now := time.Now()
	problems := make([]domain.Problem, len(problemsJSON))
	for i, p := range problemsJSON {
		interval := p.RevisionInterval
		if interval == 0 {
			interval = 7
		}
		problems[i] = domain.Problem{
			ID:               uuid.New(),
			Title:            p.Title,
			Pattern:          p.Pattern,
			Difficulty:       domain.Difficulty(p.Difficulty),
			Platform:         p.Platform,
			Link:             p.Link,
			Tags:             p.Tags,
			Priority:         p.Priority,
			RevisionInterval: interval,
			CreatedAt:        now,
			Version:          1,
			SolvedDates: []domain.SolvedDate{{
				Date: now,
				Kind: domain.SolveKindFirstSolve,
			}},
		}
	}

	return problems, nil
}
