package queue

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/triage-api/internal/middleware"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/service/queue"
	"github.com/jwalitptl/triage-api/pkg/httputil"
)

type Handler struct {
	engine *queue.Engine
}

func NewHandler(engine *queue.Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes mounts the public waiting-room display.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	r.GET("/queues/display", append(mw, h.Display)...)
}

func (h *Handler) RegisterProtected(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	queues := r.Group("/queues")
	{
		queues.GET("/triage", auth.RequireRole(model.RoleNurse, model.RoleManager), h.Triage)
		queues.GET("/doctor", auth.RequireRole(model.RoleDoctor, model.RoleManager), h.Doctor)
	}
}

func (h *Handler) Display(c *gin.Context) {
	snap, err := h.engine.Display(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, snap)
}

func (h *Handler) Triage(c *gin.Context) {
	q, err := h.engine.TriageQueue(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, q)
}

func (h *Handler) Doctor(c *gin.Context) {
	q, err := h.engine.DoctorQueue(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, q)
}
