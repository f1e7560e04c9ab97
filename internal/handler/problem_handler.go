package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codetrack/backend/internal/domain"
	"github.com/codetrack/backend/internal/service"
)

// ProblemHandler handles problem-tracking HTTP requests
type ProblemHandler struct {
	problemService *service.ProblemService
}

// NewProblemHandler creates a new problem handler
func NewProblemHandler(problemService *service.ProblemService) *ProblemHandler {
	return &ProblemHandler{
		problemService: problemService,
	}
}

// GetProblems returns all problems, optionally filtered by pattern,
// difficulty, title substring or tag
// GET /api/problems?pattern=&difficulty=&title=&tag=
func (h *ProblemHandler) GetProblems(c *gin.Context) {
	filter := domain.ProblemFilter{
		Pattern:    c.Query("pattern"),
		Difficulty: domain.Difficulty(c.Query("difficulty")),
		Title:      c.Query("title"),
		Tag:        c.Query("tag"),
	}

	problems, err := h.problemService.ListProblems(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve problems",
		})
		return
	}

	responses := make([]domain.ProblemResponse, len(problems))
	for i, problem := range problems {
		responses[i] = problem.ToResponse()
	}

	c.JSON(http.StatusOK, gin.H{
		"problems": responses,
		"count":    len(responses),
	})
}

// GetProblem returns a specific problem by ID
// GET /api/problems/:id
func (h *ProblemHandler) GetProblem(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	problem, err := h.problemService.GetProblemByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "Failed to retrieve problem")
		return
	}

	c.JSON(http.StatusOK, problem.ToResponse())
}

// CreateProblem adds a new problem to the tracker
// POST /api/problems
func (h *ProblemHandler) CreateProblem(c *gin.Context) {
	var input domain.ProblemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	problem, err := h.problemService.CreateProblem(c.Request.Context(), &input)
	if err != nil {
		h.respondError(c, err, "Failed to create problem")
		return
	}

	c.JSON(http.StatusCreated, problem.ToResponse())
}

// UpdateProblem overwrites the descriptive fields of a problem
// PUT /api/problems/:id
func (h *ProblemHandler) UpdateProblem(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var input domain.ProblemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	problem, err := h.problemService.UpdateProblem(c.Request.Context(), id, &input)
	if err != nil {
		h.respondError(c, err, "Failed to update problem")
		return
	}

	c.JSON(http.StatusOK, problem.ToResponse())
}

// DeleteProblem removes a problem and its solve history
// DELETE /api/problems/:id
func (h *ProblemHandler) DeleteProblem(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.problemService.DeleteProblem(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete problem",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkRevision records a revision of a problem
// POST /api/problems/:id/revision
func (h *ProblemHandler) MarkRevision(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var input domain.RevisionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	problem, err := h.problemService.MarkRevision(c.Request.Context(), id, &input)
	if err != nil {
		h.respondError(c, err, "Failed to mark revision")
		return
	}

	c.JSON(http.StatusOK, problem.ToResponse())
}

// GetDueProblems returns the problems currently due for revision
// GET /api/problems/due
func (h *ProblemHandler) GetDueProblems(c *gin.Context) {
	problems, err := h.problemService.DueForRevision(c.Request.Context(), time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve due problems",
		})
		return
	}

	responses := make([]domain.ProblemResponse, len(problems))
	for i, problem := range problems {
		responses[i] = problem.ToResponse()
	}

	c.JSON(http.StatusOK, gin.H{
		"problems": responses,
		"count":    len(responses),
	})
}

// GetProblemStats returns statistics about the tracked problem set
// GET /api/problems/stats
func (h *ProblemHandler) GetProblemStats(c *gin.Context) {
	stats, err := h.problemService.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve problem statistics",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// parseID parses the :id path parameter, responding 400 on malformed input
func (h *ProblemHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid problem ID",
		})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps domain errors to HTTP status codes
func (h *ProblemHandler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrProblemNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Problem not found",
		})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Problem was modified concurrently, retry",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fallback,
		})
	}
}
