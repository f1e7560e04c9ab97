package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/codetrack/backend/internal/domain"
	"github.com/codetrack/backend/internal/infrastructure"
)

// ProblemService handles problem-tracking business logic
type ProblemService struct {
	problemRepo domain.ProblemRepository
	metrics     *infrastructure.TelemetryMetrics
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewProblemService creates a new problem service. metrics may be nil when
// telemetry is disabled.
func NewProblemService(
	problemRepo domain.ProblemRepository,
	metrics *infrastructure.TelemetryMetrics,
	tracer trace.Tracer,
	logger *zap.Logger,
) *ProblemService {
	return &ProblemService{
		problemRepo: problemRepo,
		metrics:     metrics,
		tracer:      tracer,
		logger:      logger,
	}
}

// ListProblems returns all tracked problems, optionally filtered
func (s *ProblemService) ListProblems(ctx context.Context, filter domain.ProblemFilter) ([]domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.ListProblems")
	defer span.End()

	switch {
	case filter.Pattern != "":
		span.SetAttributes(attribute.String("filter.pattern", filter.Pattern))
		return s.problemRepo.FindByPattern(filter.Pattern)
	case filter.Difficulty != "":
		span.SetAttributes(attribute.String("filter.difficulty", string(filter.Difficulty)))
		return s.problemRepo.FindByDifficulty(filter.Difficulty)
	case filter.Title != "":
		span.SetAttributes(attribute.String("filter.title", filter.Title))
		return s.problemRepo.SearchByTitle(filter.Title)
	case filter.Tag != "":
		span.SetAttributes(attribute.String("filter.tag", filter.Tag))
		return s.problemRepo.FindByTag(filter.Tag)
	default:
		return s.problemRepo.FindAll()
	}
}

// GetProblemByID returns a single problem with its solve history
func (s *ProblemService) GetProblemByID(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.GetProblemByID")
	defer span.End()

	span.SetAttributes(attribute.String("problem.id", id.String()))
	return s.problemRepo.FindByID(id)
}

// CreateProblem builds and persists a new problem aggregate. When the caller
// supplies no solve history, a first_solve entry dated now is synthesized so
// every problem starts with at least one solved date.
func (s *ProblemService) CreateProblem(ctx context.Context, input *domain.ProblemInput) (*domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.CreateProblem")
	defer span.End()

	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := time.Now()
	problem := &domain.Problem{
		Title:            input.Title,
		Pattern:          input.Pattern,
		Difficulty:       input.Difficulty,
		Platform:         input.Platform,
		Link:             input.Link,
		Notes:            input.Notes,
		Tags:             input.Tags,
		Priority:         input.Priority,
		RevisionInterval: 7,
		CreatedAt:        now,
		Version:          1,
	}
	if input.RevisionInterval != nil {
		problem.RevisionInterval = *input.RevisionInterval
	}

	if len(input.SolvedDates) == 0 {
		problem.SolvedDates = []domain.SolvedDate{{
			Date: now,
			Kind: domain.SolveKindFirstSolve,
		}}
	} else {
		for _, in := range input.SolvedDates {
			date := now
			if in.Date != nil {
				date = *in.Date
			}
			problem.SolvedDates = append(problem.SolvedDates, domain.SolvedDate{
				Date:      date,
				TimeSpent: in.TimeSpent,
				Rating:    in.Rating,
				Kind:      domain.SolveKindFirstSolve,
			})
		}
	}
	problem.RecomputeStats()

	if err := s.problemRepo.Create(problem); err != nil {
		s.logger.Error("Failed to create problem",
			zap.String("title", input.Title),
			zap.Error(err),
		)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ProblemsCreated.Add(ctx, 1,
			metric.WithAttributes(attribute.String("problem.difficulty", string(problem.Difficulty))),
		)
	}

	s.logger.Info("Problem created",
		zap.String("problem_id", problem.ID.String()),
		zap.String("title", problem.Title),
		zap.String("pattern", problem.Pattern),
	)

	span.SetAttributes(attribute.String("problem.id", problem.ID.String()))
	return problem, nil
}

// UpdateProblem overwrites the descriptive fields of an existing problem.
// Revision counters, stats, solve history and created_at are never touched.
func (s *ProblemService) UpdateProblem(ctx context.Context, id uuid.UUID, input *domain.ProblemInput) (*domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.UpdateProblem")
	defer span.End()

	span.SetAttributes(attribute.String("problem.id", id.String()))

	problem, err := s.problemRepo.FindByID(id)
	if err != nil {
		return nil, err
	}

	problem.Title = input.Title
	problem.Pattern = input.Pattern
	problem.Difficulty = input.Difficulty
	problem.Platform = input.Platform
	problem.Link = input.Link
	problem.Notes = input.Notes
	problem.Tags = input.Tags
	problem.Priority = input.Priority
	if input.RevisionInterval != nil {
		problem.RevisionInterval = *input.RevisionInterval
	}

	if err := s.problemRepo.Save(problem); err != nil {
		s.logger.Error("Failed to update problem",
			zap.String("problem_id", id.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Problem updated", zap.String("problem_id", id.String()))
	return problem, nil
}

// DeleteProblem removes a problem and its entire solve history. Deleting an
// id that does not exist succeeds; only storage faults are reported.
func (s *ProblemService) DeleteProblem(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "ProblemService.DeleteProblem")
	defer span.End()

	span.SetAttributes(attribute.String("problem.id", id.String()))

	if err := s.problemRepo.Delete(id); err != nil {
		s.logger.Error("Failed to delete problem",
			zap.String("problem_id", id.String()),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("Problem deleted", zap.String("problem_id", id.String()))
	return nil
}

// MarkRevision records a revision of the problem: appends a solve history
// entry, bumps the revision counter, stamps last_revised with the call time
// and recomputes the aggregate stats from the full history.
func (s *ProblemService) MarkRevision(ctx context.Context, id uuid.UUID, input *domain.RevisionInput) (*domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.MarkRevision")
	defer span.End()

	span.SetAttributes(attribute.String("problem.id", id.String()))

	problem, err := s.problemRepo.FindByID(id)
	if err != nil {
		return nil, err
	}

	event := domain.SolvedDate{
		Date:      time.Now(),
		TimeSpent: input.TimeSpent,
		Rating:    input.Rating,
	}
	if input.Date != nil {
		event.Date = *input.Date
	}

	problem.AppendRevision(event)

	if err := s.problemRepo.Save(problem); err != nil {
		s.logger.Error("Failed to save revision",
			zap.String("problem_id", id.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RevisionsMarked.Add(ctx, 1,
			metric.WithAttributes(attribute.String("problem.difficulty", string(problem.Difficulty))),
		)
	}

	s.logger.Info("Revision marked",
		zap.String("problem_id", id.String()),
		zap.Int("revision_count", problem.RevisionCount),
		zap.Float64("average_rating", problem.AverageRating),
	)

	return problem, nil
}

// DueForRevision returns the problems whose last revision is older than their
// own revision interval, or that were never revised at all.
func (s *ProblemService) DueForRevision(ctx context.Context, now time.Time) ([]domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.DueForRevision")
	defer span.End()

	// The query pre-filters on the cutoff; the per-problem interval check
	// happens on the aggregate since intervals vary per problem.
	candidates, err := s.problemRepo.FindNeedingRevision(now)
	if err != nil {
		return nil, err
	}

	due := make([]domain.Problem, 0, len(candidates))
	for _, p := range candidates {
		if p.DueForRevision(now) {
			due = append(due, p)
		}
	}

	span.SetAttributes(attribute.Int("problems.due", len(due)))
	return due, nil
}

// GetStats returns aggregate statistics over the whole problem set
func (s *ProblemService) GetStats(ctx context.Context) (*domain.ProblemStats, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.GetStats")
	defer span.End()

	problems, err := s.problemRepo.FindAll()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	stats := &domain.ProblemStats{
		Total:        len(problems),
		ByDifficulty: make(map[domain.Difficulty]int),
		ByPattern:    make(map[string]int),
	}

	for _, p := range problems {
		stats.ByDifficulty[p.Difficulty]++
		stats.ByPattern[p.Pattern]++
		stats.TotalRevisions += p.RevisionCount
		stats.TotalTimeSpent += p.TotalTimeSpent
		if p.DueForRevision(now) {
			stats.DueForRevision++
		}
	}

	return stats, nil
}

// validateInput enforces the required descriptive fields
func validateInput(input *domain.ProblemInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return domain.WrapError(domain.ErrValidation, "title is required")
	}
	if strings.TrimSpace(input.Pattern) == "" {
		return domain.WrapError(domain.ErrValidation, "pattern is required")
	}
	if input.Difficulty == "" {
		return domain.WrapError(domain.ErrValidation, "difficulty is required")
	}
	return nil
}
