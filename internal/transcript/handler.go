package transcript

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gridmeet/sfu-backend/pkg/response"
)

// Handler serves GET /meetings/:id/transcript-url.
type Handler struct {
	exporter *Exporter
}

func NewHandler(exporter *Exporter) *Handler {
	return &Handler{exporter: exporter}
}

func (h *Handler) GetDownloadURL(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	url, err := h.exporter.PresignURL(c.Request.Context(), meetingID)
	if err != nil {
		response.Internal(c, "failed to presign transcript url")
		return
	}
	response.OK(c, gin.H{"url": url})
}
