package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kgrail/kgrail"
	"github.com/kgrail/kgrail/pkg/server/dto"
)

// IngestHandler handles document ingestion requests.
type IngestHandler struct {
	engine kgrail.Engine
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(engine kgrail.Engine) *IngestHandler {
	return &IngestHandler{engine: engine}
}

// Ingest handles POST /api/v1/ingest.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "invalid_request"})
		return
	}
	if len(req.Documents) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "documents array is required and cannot be empty", Code: "invalid_request"})
		return
	}

	report, err := h.engine.Ingest(c.Request.Context(), req.Documents)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error(), Code: "ingest_failed"})
		return
	}

	status := http.StatusOK
	if len(report.Errors) > 0 {
		// Partial success: some nodes or edges were rejected.
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}
