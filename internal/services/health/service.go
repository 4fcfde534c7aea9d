package health

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler answers liveness probes. When a database is configured it is
// pinged with a short deadline so a wedged pool shows up as degraded.
type Handler struct {
	DB      *sql.DB
	Version string
}

func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok", "version": h.Version}
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}
	c.JSON(http.StatusOK, resp)
}
