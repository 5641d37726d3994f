package analytics

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gridmeet/sfu-backend/internal/sessionlog"
	"github.com/gridmeet/sfu-backend/pkg/response"
)

// Handler serves GET /meetings/:id/analytics.
type Handler struct {
	repo       *Repository
	sessionLog *sessionlog.Repository
}

func NewHandler(repo *Repository, sessionLog *sessionlog.Repository) *Handler {
	return &Handler{repo: repo, sessionLog: sessionLog}
}

func (h *Handler) GetByMeeting(c *gin.Context) {
	meetingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	ctx := c.Request.Context()

	peak, err := h.repo.PeakParticipants(ctx, meetingID)
	if err != nil {
		response.Internal(c, "failed to load peak participants")
		return
	}
	agg, err := h.sessionLog.GetWatchTimeAggregates(ctx, meetingID)
	if err != nil {
		response.Internal(c, "failed to load watch time aggregates")
		return
	}

	response.OK(c, Summary{
		PeakParticipants:  peak,
		UniqueJoiners:     agg.DistinctUsers,
		TotalWatchSeconds: agg.TotalWatchSeconds,
	})
}
