package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Difficulty represents the difficulty level of a problem
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// SolveKind distinguishes the initial solve recorded at creation from
// subsequent revisions. Only revisions count toward RevisionCount.
type SolveKind string

const (
	SolveKindFirstSolve SolveKind = "first_solve"
	SolveKindRevision   SolveKind = "revision"
)

// Problem is the aggregate root for a tracked coding-practice problem.
// It owns its solve history; SolvedDate rows never outlive their problem.
type Problem struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Title            string         `json:"title" gorm:"not null"`
	Pattern          string         `json:"pattern" gorm:"not null"`
	Difficulty       Difficulty     `json:"difficulty" gorm:"type:varchar(10);not null"`
	Platform         string         `json:"platform"`
	Link             string         `json:"link"`
	Notes            string         `json:"notes" gorm:"type:text"`
	Tags             pq.StringArray `json:"tags" gorm:"type:text[]"`
	Priority         string         `json:"priority"`
	RevisionInterval int            `json:"revision_interval" gorm:"not null;default:7"`
	RevisionCount    int            `json:"revision_count" gorm:"not null;default:0"`
	LastRevised      *time.Time     `json:"last_revised"`
	CreatedAt        time.Time      `json:"created_at"`
	TotalTimeSpent   int            `json:"total_time_spent" gorm:"not null;default:0"`
	AverageRating    float64        `json:"average_rating" gorm:"not null;default:0"`
	Version          int            `json:"-" gorm:"not null;default:1"`

	SolvedDates []SolvedDate `json:"solved_dates" gorm:"foreignKey:ProblemID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for GORM
func (Problem) TableName() string {
	return "problems"
}

// SolvedDate records one solve or revision of a problem. TimeSpent and
// Rating are nil when the learner did not report them.
type SolvedDate struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProblemID uuid.UUID `json:"problem_id" gorm:"type:uuid;not null;index"`
	Date      time.Time `json:"date" gorm:"not null"`
	TimeSpent *int      `json:"time_spent"` // minutes
	Rating    *int      `json:"rating"`     // 1-5 stars
	Kind      SolveKind `json:"kind" gorm:"type:varchar(16);not null;default:'revision'"`
}

// TableName specifies the table name for GORM
func (SolvedDate) TableName() string {
	return "solved_dates"
}

// AppendRevision appends a revision event to the solve history and updates
// the aggregate counters. LastRevised is the time of the call, not the
// event's own date; callers may backdate the event itself.
func (p *Problem) AppendRevision(event SolvedDate) {
	event.ProblemID = p.ID
	event.Kind = SolveKindRevision
	p.SolvedDates = append(p.SolvedDates, event)
	p.RevisionCount++
	now := time.Now()
	p.LastRevised = &now
	p.RecomputeStats()
}

// RecomputeStats rederives TotalTimeSpent and AverageRating from the full
// solve history. AverageRating is the mean over entries that carry a rating,
// rounded to one decimal, 0.0 when no entry is rated.
func (p *Problem) RecomputeStats() {
	total := 0
	ratingSum := 0
	rated := 0
	for _, sd := range p.SolvedDates {
		if sd.TimeSpent != nil {
			total += *sd.TimeSpent
		}
		if sd.Rating != nil {
			ratingSum += *sd.Rating
			rated++
		}
	}
	p.TotalTimeSpent = total
	if rated == 0 {
		p.AverageRating = 0.0
		return
	}
	mean := float64(ratingSum) / float64(rated)
	p.AverageRating = math.Round(mean*10) / 10
}

// DueForRevision reports whether the problem needs revising as of now:
// never revised, or last revised more than RevisionInterval days ago.
func (p *Problem) DueForRevision(now time.Time) bool {
	if p.LastRevised == nil {
		return true
	}
	cutoff := now.AddDate(0, 0, -p.RevisionInterval)
	return p.LastRevised.Before(cutoff)
}

// ProblemRepository defines the interface for problem data access
type ProblemRepository interface {
	Create(problem *Problem) error
	FindByID(id uuid.UUID) (*Problem, error)
	FindAll() ([]Problem, error)
	// Save persists the aggregate and its solve history. It performs an
	// optimistic version check and returns ErrConflict when the stored
	// version no longer matches the loaded one.
	Save(problem *Problem) error
	// Delete removes the problem and cascades to its solved dates.
	// Deleting an absent id is a no-op.
	Delete(id uuid.UUID) error
	FindByPattern(pattern string) ([]Problem, error)
	FindByDifficulty(difficulty Difficulty) ([]Problem, error)
	SearchByTitle(title string) ([]Problem, error)
	FindByTag(tag string) ([]Problem, error)
	FindNeedingRevision(cutoff time.Time) ([]Problem, error)
}

// ProblemInput carries the caller-settable fields for create and update.
// Counters, stats and history are never taken from input on update.
type ProblemInput struct {
	Title            string            `json:"title" binding:"required"`
	Pattern          string            `json:"pattern" binding:"required"`
	Difficulty       Difficulty        `json:"difficulty" binding:"required"`
	Platform         string            `json:"platform"`
	Link             string            `json:"link"`
	Notes            string            `json:"notes"`
	Tags             []string          `json:"tags"`
	Priority         string            `json:"priority"`
	RevisionInterval *int              `json:"revision_interval"`
	SolvedDates      []SolvedDateInput `json:"solved_dates"`
}

// SolvedDateInput is a history entry supplied at creation time.
type SolvedDateInput struct {
	Date      *time.Time `json:"date"`
	TimeSpent *int       `json:"time_spent"`
	Rating    *int       `json:"rating"`
}

// RevisionInput carries the optional details of a revision event.
type RevisionInput struct {
	Date      *time.Time `json:"date"`
	TimeSpent *int       `json:"time_spent"`
	Rating    *int       `json:"rating"`
}

// ProblemResponse represents a problem in API responses
type ProblemResponse struct {
	ID               uuid.UUID            `json:"id"`
	Title            string               `json:"title"`
	Pattern          string               `json:"pattern"`
	Difficulty       Difficulty           `json:"difficulty"`
	Platform         string               `json:"platform"`
	Link             string               `json:"link"`
	Notes            string               `json:"notes"`
	Tags             []string             `json:"tags"`
	Priority         string               `json:"priority"`
	RevisionInterval int                  `json:"revision_interval"`
	RevisionCount    int                  `json:"revision_count"`
	LastRevised      *time.Time           `json:"last_revised"`
	CreatedAt        time.Time            `json:"created_at"`
	TotalTimeSpent   int                  `json:"total_time_spent"`
	AverageRating    float64              `json:"average_rating"`
	SolvedDates      []SolvedDateResponse `json:"solved_dates"`
}

// SolvedDateResponse renders a history entry. Absent time and rating are
// normalized to 0; consumers cannot distinguish "none" from zero here.
type SolvedDateResponse struct {
	Date      string    `json:"date"`
	TimeSpent int       `json:"time_spent"`
	Rating    int       `json:"rating"`
	Kind      SolveKind `json:"kind"`
}

// ToResponse converts a Problem to its API projection
func (p *Problem) ToResponse() ProblemResponse {
	dates := make([]SolvedDateResponse, len(p.SolvedDates))
	for i, sd := range p.SolvedDates {
		entry := SolvedDateResponse{
			Date: sd.Date.Format(time.RFC3339),
			Kind: sd.Kind,
		}
		if sd.TimeSpent != nil {
			entry.TimeSpent = *sd.TimeSpent
		}
		if sd.Rating != nil {
			entry.Rating = *sd.Rating
		}
		dates[i] = entry
	}

	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	return ProblemResponse{
		ID:               p.ID,
		Title:            p.Title,
		Pattern:          p.Pattern,
		Difficulty:       p.Difficulty,
		Platform:         p.Platform,
		Link:             p.Link,
		Notes:            p.Notes,
		Tags:             tags,
		Priority:         p.Priority,
		RevisionInterval: p.RevisionInterval,
		RevisionCount:    p.RevisionCount,
		LastRevised:      p.LastRevised,
		CreatedAt:        p.CreatedAt,
		TotalTimeSpent:   p.TotalTimeSpent,
		AverageRating:    p.AverageRating,
		SolvedDates:      dates,
	}
}

// ProblemStats summarizes the tracked problem set
type ProblemStats struct {
	Total          int                `json:"total"`
	ByDifficulty   map[Difficulty]int `json:"by_difficulty"`
	ByPattern      map[string]int     `json:"by_pattern"`
	TotalRevisions int                `json:"total_revisions"`
	TotalTimeSpent int                `json:"total_time_spent"`
	DueForRevision int                `json:"due_for_revision"`
}

// ProblemFilter represents filtering options for problem list queries.
// Criteria are mutually exclusive; the first non-zero field in declaration
// order is used.
type ProblemFilter struct {
	Pattern    string
	Difficulty Difficulty
	Title      string
	Tag        string
}

// IsZero reports whether no filter criterion is set
func (f ProblemFilter) IsZero() bool {
	return f.Pattern == "" && f.Difficulty == "" && f.Title == "" && f.Tag == ""
}
