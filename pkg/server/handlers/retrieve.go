package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kgrail/kgrail"
	"github.com/kgrail/kgrail/pkg/evidence"
	"github.com/kgrail/kgrail/pkg/server/dto"
)

// RetrieveHandler handles search, term resolution, and answer
// validation requests.
type RetrieveHandler struct {
	engine kgrail.Engine
}

// NewRetrieveHandler creates a new retrieve handler.
func NewRetrieveHandler(engine kgrail.Engine) *RetrieveHandler {
	return &RetrieveHandler{engine: engine}
}

// Search handles POST /api/v1/search.
func (h *RetrieveHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "invalid_request"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "query field is required and cannot be empty", Code: "invalid_request"})
		return
	}

	result, err := h.engine.Query(c.Request.Context(), req.Query, &kgrail.QueryOptions{
		MaxResults:       req.MaxResults,
		ToolFilter:       req.Tool,
		DocTypeFilter:    req.DocType,
		DisableExpansion: req.DisableExpansion,
		DisableResolver:  req.DisableResolver,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error(), Code: "search_failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Resolve handles POST /api/v1/resolve.
func (h *RetrieveHandler) Resolve(c *gin.Context) {
	var req dto.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "invalid_request"})
		return
	}
	if strings.TrimSpace(req.Term) == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "term field is required and cannot be empty", Code: "invalid_request"})
		return
	}

	resolution, err := h.engine.ResolveTerm(c.Request.Context(), req.Term)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error(), Code: "resolution_failed"})
		return
	}

	c.JSON(http.StatusOK, resolution)
}

// Validate handles POST /api/v1/validate. A strict-mode provenance
// violation maps to 422 with the structured violation payload.
func (h *RetrieveHandler) Validate(c *gin.Context) {
	var req dto.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "invalid_request"})
		return
	}
	if strings.TrimSpace(req.Answer) == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "answer field is required and cannot be empty", Code: "invalid_request"})
		return
	}

	result, ledger, err := h.engine.ValidateAnswer(c.Request.Context(), req.Query, req.Answer, req.Chunks)
	if err != nil {
		var provErr *evidence.ProvenanceError
		if errors.As(err, &provErr) {
			c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{
				Error:   provErr.Message,
				Code:    provErr.Code,
				Details: provErr.Details,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error(), Code: "validation_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"validation": result,
		"ledger":     ledger,
	})
}

// Stats handles GET /api/v1/stats.
func (h *RetrieveHandler) Stats(c *gin.Context) {
	stats, err := h.engine.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error(), Code: "stats_failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
