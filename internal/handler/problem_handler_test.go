package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/codetrack/backend/internal/domain"
	"github.com/codetrack/backend/internal/service"
)

type stubProblemRepo struct {
	problems map[uuid.UUID]*domain.Problem
}

func newStubProblemRepo() *stubProblemRepo {
	return &stubProblemRepo{problems: make(map[uuid.UUID]*domain.Problem)}
}

func (r *stubProblemRepo) clone(p *domain.Problem) *domain.Problem {
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.SolvedDates = append([]domain.SolvedDate(nil), p.SolvedDates...)
	return &c
}

func (r *stubProblemRepo) Create(problem *domain.Problem) error {
	if problem.ID == uuid.Nil {
		problem.ID = uuid.New()
	}
	for i := range problem.SolvedDates {
		problem.SolvedDates[i].ProblemID = problem.ID
	}
	r.problems[problem.ID] = r.clone(problem)
	return nil
}

func (r *stubProblemRepo) FindByID(id uuid.UUID) (*domain.Problem, error) {
	p, ok := r.problems[id]
	if !ok {
		return nil, domain.ErrProblemNotFound
	}
	return r.clone(p), nil
}

func (r *stubProblemRepo) FindAll() ([]domain.Problem, error) {
	out := make([]domain.Problem, 0, len(r.problems))
	for _, p := range r.problems {
		out = append(out, *r.clone(p))
	}
	return out, nil
}

func (r *stubProblemRepo) Save(problem *domain.Problem) error {
	if _, ok := r.problems[problem.ID]; !ok {
		return domain.ErrProblemNotFound
	}
	problem.Version++
	r.problems[problem.ID] = r.clone(problem)
	return nil
}

func (r *stubProblemRepo) Delete(id uuid.UUID) error {
	delete(r.problems, id)
	return nil
}

func (r *stubProblemRepo) FindByPattern(pattern string) ([]domain.Problem, error) {
	var out []domain.Problem
	for _, p := range r.problems {
		if p.Pattern == pattern {
			out = append(out, *r.clone(p))
		}
	}
	return out, nil
}

func (r *stubProblemRepo) FindByDifficulty(difficulty domain.Difficulty) ([]domain.Problem, error) {
	var out []domain.Problem
	for _, p := range r.problems {
		if p.Difficulty == difficulty {
			out = append(out, *r.clone(p))
		}
	}
	return out, nil
}

func (r *stubProblemRepo) SearchByTitle(title string) ([]domain.Problem, error) {
	return r.FindAll()
}

func (r *stubProblemRepo) FindByTag(tag string) ([]domain.Problem, error) {
	return r.FindAll()
}

func (r *stubProblemRepo) FindNeedingRevision(cutoff time.Time) ([]domain.Problem, error) {
	var out []domain.Problem
	for _, p := range r.problems {
		if p.LastRevised == nil || p.LastRevised.Before(cutoff) {
			out = append(out, *r.clone(p))
		}
	}
	return out, nil
}

func setupRouter(repo domain.ProblemRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)

	svc := service.NewProblemService(repo, nil, otel.Tracer("test"), zap.NewNop())
	h := NewProblemHandler(svc)

	router := gin.New()
	problems := router.Group("/api/problems")
	{
		problems.GET("", h.GetProblems)
		problems.GET("/stats", h.GetProblemStats)
		problems.GET("/due", h.GetDueProblems)
		problems.GET("/:id", h.GetProblem)
		problems.POST("", h.CreateProblem)
		problems.POST("/:id/revision", h.MarkRevision)
		problems.PUT("/:id", h.UpdateProblem)
		problems.DELETE("/:id", h.DeleteProblem)
	}
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateProblem_Returns201WithSynthesizedHistory(t *testing.T) {
	router := setupRouter(newStubProblemRepo())

	w := doJSON(t, router, http.MethodPost, "/api/problems", gin.H{
		"title":      "Two Sum",
		"pattern":    "Hash Map",
		"difficulty": "Easy",
		"tags":       []string{"array"},
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp domain.ProblemResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.ID)
	assert.Equal(t, 0, resp.RevisionCount)
	assert.Equal(t, 0.0, resp.AverageRating)
	require.Len(t, resp.SolvedDates, 1)
	assert.Equal(t, domain.SolveKindFirstSolve, resp.SolvedDates[0].Kind)
	assert.Equal(t, 0, resp.SolvedDates[0].TimeSpent)
	assert.Equal(t, 0, resp.SolvedDates[0].Rating)
}

func TestCreateProblem_MissingRequiredFieldIs400(t *testing.T) {
	router := setupRouter(newStubProblemRepo())

	w := doJSON(t, router, http.MethodPost, "/api/problems", gin.H{
		"pattern":    "Hash Map",
		"difficulty": "Easy",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProblem_UnknownIDIs404(t *testing.T) {
	router := setupRouter(newStubProblemRepo())

	w := doJSON(t, router, http.MethodGet, "/api/problems/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetProblem_MalformedIDIs400(t *testing.T) {
	router := setupRouter(newStubProblemRepo())

	w := doJSON(t, router, http.MethodGet, "/api/problems/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkRevision_UpdatesProjection(t *testing.T) {
	router := setupRouter(newStubProblemRepo())

	created := doJSON(t, router, http.MethodPost, "/api/problems", gin.H{
		"title":      "Course Schedule",
		"pattern":    "Topological Sort",
		"difficulty": "Medium",
	})
	require.Equal(t, http.StatusCreated, created.Code)

	var problem domain.ProblemResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &problem))

	w := doJSON(t, router, http.MethodPost, "/api/problems/"+problem.ID.String()+"/revision", gin.H{
		"time_spent": 30,
		"rating":     4,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var updated domain.ProblemResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 1, updated.RevisionCount)
	assert.Equal(t, 30, updated.TotalTimeSpent)
	assert.Equal(t, 4.0, updated.AverageRating)
	assert.NotNil(t, updated.LastRevised)
	require.Len(t, updated.SolvedDates, 2)
	assert.Equal(t, domain.SolveKindRevision, updated.SolvedDates[1].Kind)
}

func TestMarkRevision_UnknownIDIs404(t *testing.T) {
	router := setupRouter(newStubProblemRepo())

	w := doJSON(t, router, http.MethodPost, "/api/problems/"+uuid.NewString()+"/revision", gin.H{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProblem_PreservesRevisionState(t *testing.T) {
	router := setupRouter(newStubProblemRepo())

	created := doJSON(t, router, http.MethodPost, "/api/problems", gin.H{
		"title":      "Two Sum",
		"pattern":    "Hash Map",
		"difficulty": "Easy",
	})
	require.Equal(t, http.StatusCreated, created.Code)

	var problem domain.ProblemResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &problem))

	revised := doJSON(t, router, http.MethodPost, "/api/problems/"+problem.ID.String()+"/revision", gin.H{
		"rating": 5,
	})
	require.Equal(t, http.StatusOK, revised.Code)

	w := doJSON(t, router, http.MethodPut, "/api/problems/"+problem.ID.String(), gin.H{
		"title":      "Two Sum II",
		"pattern":    "Two Pointers",
		"difficulty": "Medium",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var updated domain.ProblemResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Two Sum II", updated.Title)
	assert.Equal(t, 1, updated.RevisionCount)
	assert.Equal(t, 5.0, updated.AverageRating)
	assert.Len(t, updated.SolvedDates, 2)
}

func TestDeleteProblem_Returns204AndIsIdempotent(t *testing.T) {
	router := setupRouter(newStubProblemRepo())

	created := doJSON(t, router, http.MethodPost, "/api/problems", gin.H{
		"title":      "Two Sum",
		"pattern":    "Hash Map",
		"difficulty": "Easy",
	})
	require.Equal(t, http.StatusCreated, created.Code)

	var problem domain.ProblemResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &problem))

	first := doJSON(t, router, http.MethodDelete, "/api/problems/"+problem.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := doJSON(t, router, http.MethodDelete, "/api/problems/"+problem.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, second.Code)

	gone := doJSON(t, router, http.MethodGet, "/api/problems/"+problem.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestGetProblems_ListAndCount(t *testing.T) {
	router := setupRouter(newStubProblemRepo())

	for _, title := range []string{"Two Sum", "Course Schedule"} {
		w := doJSON(t, router, http.MethodPost, "/api/problems", gin.H{
			"title":      title,
			"pattern":    "Hash Map",
			"difficulty": "Easy",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/problems", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Problems []domain.ProblemResponse `json:"problems"`
		Count    int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Problems, 2)
}

func TestGetProblemStats(t *testing.T) {
	router := setupRouter(newStubProblemRepo())

	created := doJSON(t, router, http.MethodPost, "/api/problems", gin.H{
		"title":      "Merge K Sorted Lists",
		"pattern":    "Heap",
		"difficulty": "Hard",
	})
	require.Equal(t, http.StatusCreated, created.Code)

	var problem domain.ProblemResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &problem))

	revised := doJSON(t, router, http.MethodPost, "/api/problems/"+problem.ID.String()+"/revision", gin.H{
		"time_spent": 45,
	})
	require.Equal(t, http.StatusOK, revised.Code)

	w := doJSON(t, router, http.MethodGet, "/api/problems/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats domain.ProblemStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByDifficulty[domain.DifficultyHard])
	assert.Equal(t, 1, stats.ByPattern["Heap"])
	assert.Equal(t, 1, stats.TotalRevisions)
	assert.Equal(t, 45, stats.TotalTimeSpent)
}

func TestGetDueProblems(t *testing.T) {
	repo := newStubProblemRepo()
	router := setupRouter(repo)

	created := doJSON(t, router, http.MethodPost, "/api/problems", gin.H{
		"title":      "Container With Most Water",
		"pattern":    "Two Pointers",
		"difficulty": "Medium",
	})
	require.Equal(t, http.StatusCreated, created.Code)

	// Never revised, so it is due immediately
	w := doJSON(t, router, http.MethodGet, "/api/problems/due", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Problems []domain.ProblemResponse `json:"problems"`
		Count    int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}
