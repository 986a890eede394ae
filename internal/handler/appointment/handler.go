package appointment

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/triage-api/internal/handler"
	"github.com/jwalitptl/triage-api/internal/middleware"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/service/appointment"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
	"github.com/jwalitptl/triage-api/pkg/httputil"
)

type Handler struct {
	svc *appointment.Service
}

func NewHandler(svc *appointment.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterProtected(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	nurse := auth.RequireRole(model.RoleNurse)
	doctor := auth.RequireRole(model.RoleDoctor)
	manager := auth.RequireRole(model.RoleManager)

	r.GET("/appointments", manager, h.List)
	r.GET("/appointments/:id", h.Get)

	triage := r.Group("/triage", nurse)
	{
		triage.POST("/next", h.CallNextTriage)
		triage.GET("/current", h.Current)
	}
	consultation := r.Group("/consultation", doctor)
	{
		consultation.POST("/next", h.CallNextConsultation)
		consultation.GET("/current", h.Current)
	}

	apt := r.Group("/appointments/:id")
	{
		apt.POST("/triage/start", nurse, h.StartTriage)
		apt.POST("/triage/complete", nurse, h.CompleteTriage)
		apt.POST("/triage/abort", auth.RequireRole(model.RoleNurse, model.RoleManager), h.AbortTriage)

		apt.POST("/consultation/start", doctor, h.StartConsultation)
		apt.POST("/consultation/complete", doctor, h.CompleteConsultation)
		apt.POST("/consultation/abort", auth.RequireRole(model.RoleDoctor, model.RoleManager), h.AbortConsultation)
	}
}

func (h *Handler) Get(c *gin.Context) {
	id, err := handler.ParseID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	apt, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), handler.ParseFilters(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

// Current returns the appointment the caller holds. A free slot is sent as
// "data": null; the typed nil pointer keeps the key past omitempty.
func (h *Handler) Current(c *gin.Context) {
	actor, ok := middleware.Actor(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}
	apt, err := h.svc.CurrentFor(c.Request.Context(), actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) CallNextTriage(c *gin.Context) {
	h.callNext(c, h.svc.CallNextTriage)
}

func (h *Handler) CallNextConsultation(c *gin.Context) {
	h.callNext(c, h.svc.CallNextConsultation)
}

func (h *Handler) StartTriage(c *gin.Context) {
	h.act(c, h.svc.StartTriage)
}

func (h *Handler) AbortTriage(c *gin.Context) {
	h.act(c, h.svc.AbortTriage)
}

func (h *Handler) StartConsultation(c *gin.Context) {
	h.act(c, h.svc.StartConsultation)
}

func (h *Handler) AbortConsultation(c *gin.Context) {
	h.act(c, h.svc.AbortConsultation)
}

func (h *Handler) CompleteTriage(c *gin.Context) {
	var in model.TriageInput
	if err := handler.BindJSON(c, &in); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.act(c, func(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Appointment, error) {
		return h.svc.CompleteTriage(ctx, id, actor, &in)
	})
}

func (h *Handler) CompleteConsultation(c *gin.Context) {
	var in model.ConsultationInput
	if err := handler.BindJSON(c, &in); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.act(c, func(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Appointment, error) {
		return h.svc.CompleteConsultation(ctx, id, actor, &in)
	})
}

type actionFunc func(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Appointment, error)

func (h *Handler) act(c *gin.Context, fn actionFunc) {
	actor, ok := middleware.Actor(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}
	id, err := handler.ParseID(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	apt, err := fn(c.Request.Context(), id, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) callNext(c *gin.Context, fn func(context.Context, model.Actor) (*model.Appointment, error)) {
	actor, ok := middleware.Actor(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}
	apt, err := fn(c.Request.Context(), actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}
