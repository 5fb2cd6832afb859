package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/studioledger/internal/apperr"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
)

var errSchedulerUnavailable = apperr.New(apperr.ErrConfiguration, "scheduler_unavailable")

// RunScheduler runs the recurring-invoice and reminder sweeps for the
// caller's studio right away.
func (s *Server) RunScheduler(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, errSchedulerUnavailable)
		return
	}
	studioID, ok := studiocontext.StudioIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrMissingStudio)
		return
	}

	report, err := s.scheduler.RunStudio(c.Request.Context(), studioID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}
