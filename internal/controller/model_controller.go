package controller

import (
	"errors"
	"net/http"
	"strconv"

	"ngm-go/internal/service/ngram"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ModelController handles n-gram model HTTP endpoints
type ModelController struct {
	ngramService *ngram.NGramService
	logger       *zap.Logger
}

// NewModelController creates a new model controller
func NewModelController(ngramService *ngram.NGramService, logger *zap.Logger) *ModelController {
	return &ModelController{
		ngramService: ngramService,
		logger:       logger,
	}
}

// CreateModelRequest is the request body for model creation. Omitted
// hyperparameters take the configured defaults.
type CreateModelRequest struct {
	Name            string   `json:"name" binding:"required"`
	N               *int     `json:"n"`
	Alpha           *float64 `json:"alpha"`
	UnseenAlpha     *float64 `json:"unseen_alpha"`
	NormaliseLength *bool    `json:"normalise_length"`
}

// TextsRequest is the request body for update
type TextsRequest struct {
	Texts []string `json:"texts"`
}

// ScoreRequest is the request body for lpmf and score
type ScoreRequest struct {
	Texts    []string `json:"texts"`
	NThreads int      `json:"n_threads"` // 0 = configured default
}

// DetailsRequest is the request body for the per-token breakdown of a text
type DetailsRequest struct {
	Text string `json:"text"`
}

// DistributionRequest is the request body for a next-token distribution
type DistributionRequest struct {
	Context []string `json:"context"` // left-padded with <s> when shorter than n-1
}

// LoadModelRequest is the request body for loading a snapshot
type LoadModelRequest struct {
	Name string `json:"name" binding:"required"`
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ngram.ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, ngram.ErrInvalidParameter),
		errors.Is(err, ngram.ErrInvalidThreadCount),
		errors.Is(err, ngram.ErrEmptyInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (mc *ModelController) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		mc.logger.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	} else {
		mc.logger.Debug(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

// CreateModel handles POST /api/v1/models
func (mc *ModelController) CreateModel(c *gin.Context) {
	var req CreateModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := mc.ngramService.DefaultParams()
	if req.N != nil {
		params.N = *req.N
	}
	if req.Alpha != nil {
		params.Alpha = *req.Alpha
	}
	if req.UnseenAlpha != nil {
		params.UnseenAlpha = *req.UnseenAlpha
	}
	if req.NormaliseLength != nil {
		params.NormaliseLength = *req.NormaliseLength
	}

	info, err := mc.ngramService.CreateModel(c.Request.Context(), req.Name, params)
	if err != nil {
		mc.fail(c, "Failed to create model", err)
		return
	}

	c.JSON(http.StatusCreated, info)
}

// ListModels handles GET /api/v1/models
func (mc *ModelController) ListModels(c *gin.Context) {
	models := mc.ngramService.ListModels()
	c.JSON(http.StatusOK, gin.H{
		"models": models,
		"count":  len(models),
	})
}

// GetModel handles GET /api/v1/models/:id
func (mc *ModelController) GetModel(c *gin.Context) {
	info, err := mc.ngramService.GetModelInfo(c.Param("id"))
	if err != nil {
		mc.fail(c, "Model not found", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// DeleteModel handles DELETE /api/v1/models/:id
func (mc *ModelController) DeleteModel(c *gin.Context) {
	id := c.Param("id")
	if err := mc.ngramService.DeleteModel(c.Request.Context(), id); err != nil {
		mc.fail(c, "Failed to delete model", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// UpdateModel handles POST /api/v1/models/:id/update
func (mc *ModelController) UpdateModel(c *gin.Context) {
	var req TextsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stats, err := mc.ngramService.Update(c.Request.Context(), c.Param("id"), req.Texts)
	if err != nil {
		mc.fail(c, "Failed to update model", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Lpmf handles POST /api/v1/models/:id/lpmf
func (mc *ModelController) Lpmf(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scores, err := mc.ngramService.Lpmf(c.Request.Context(), c.Param("id"), req.Texts, req.NThreads)
	if err != nil {
		mc.fail(c, "Failed to score texts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

// Score handles POST /api/v1/models/:id/score
func (mc *ModelController) Score(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := mc.ngramService.Score(c.Request.Context(), c.Param("id"), req.Texts, req.NThreads)
	if err != nil {
		mc.fail(c, "Failed to score texts", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SaveModel handles POST /api/v1/models/:id/save
func (mc *ModelController) SaveModel(c *gin.Context) {
	id := c.Param("id")
	if err := mc.ngramService.SaveModel(c.Request.Context(), id); err != nil {
		mc.fail(c, "Failed to save model", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": id})
}

// LoadModel handles POST /api/v1/models/load
func (mc *ModelController) LoadModel(c *gin.Context) {
	var req LoadModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := mc.ngramService.LoadModel(c.Request.Context(), req.Name)
	if err != nil {
		mc.fail(c, "Failed to load model", err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// Details handles POST /api/v1/models/:id/details
func (mc *ModelController) Details(c *gin.Context) {
	var req DetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	details, err := mc.ngramService.Details(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		mc.fail(c, "Failed to score text", err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// NGrams handles GET /api/v1/models/:id/ngrams?limit=N
func (mc *ModelController) NGrams(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	ngrams, err := mc.ngramService.NGrams(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		mc.fail(c, "Failed to list n-grams", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ngrams": ngrams,
		"count":  len(ngrams),
	})
}

// Distribution handles POST /api/v1/models/:id/distribution
func (mc *ModelController) Distribution(c *gin.Context) {
	var req DistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dist, err := mc.ngramService.Distribution(c.Request.Context(), c.Param("id"), req.Context)
	if err != nil {
		mc.fail(c, "Failed to compute distribution", err)
		return
	}
	c.JSON(http.StatusOK, dist)
}
