package dashboard

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/triage-api/internal/handler"
	"github.com/jwalitptl/triage-api/internal/middleware"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/service/dashboard"
	"github.com/jwalitptl/triage-api/pkg/httputil"
)

type Handler struct {
	svc *dashboard.Service
}

func NewHandler(svc *dashboard.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterProtected(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	dash := r.Group("/dashboard", auth.RequireRole(model.RoleManager))
	{
		dash.GET("/stats", h.Stats)
		dash.GET("/stale", h.Stale)
	}
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), handler.ParseFilters(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}

func (h *Handler) Stale(c *gin.Context) {
	stale, err := h.svc.Stale(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stale)
}
