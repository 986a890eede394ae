package intake

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/triage-api/internal/handler"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/service/appointment"
	"github.com/jwalitptl/triage-api/internal/service/capacity"
	"github.com/jwalitptl/triage-api/internal/triage"
	"github.com/jwalitptl/triage-api/pkg/httputil"
)

// Receipt is what the kiosk shows after a successful intake.
type Receipt struct {
	Appointment   *model.Appointment `json:"appointment"`
	PriorityLabel string             `json:"priority_label"`
	PriorityColor string             `json:"priority_color"`
	ServiceLabel  string             `json:"service_label"`
}

type Handler struct {
	appointments *appointment.Service
	capacity     *capacity.Tracker
}

func NewHandler(appointments *appointment.Service, tracker *capacity.Tracker) *Handler {
	return &Handler{appointments: appointments, capacity: tracker}
}

// RegisterRoutes mounts the public kiosk endpoints. create carries the
// per-kiosk rate limit and body size limit.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, create ...gin.HandlerFunc) {
	intake := r.Group("/intake")
	{
		intake.GET("/categories", h.Categories)
		intake.GET("/slots", h.Slots)
		intake.POST("", append(create, h.Create)...)
	}
}

func (h *Handler) Categories(c *gin.Context) {
	httputil.RespondWithSuccess(c, triage.Categories())
}

func (h *Handler) Slots(c *gin.Context) {
	status, err := h.capacity.Status(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, status)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.IntakeRequest
	if err := handler.BindJSON(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	apt, err := h.appointments.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, Receipt{
		Appointment:   apt,
		PriorityLabel: apt.Priority.Label(),
		PriorityColor: apt.Priority.Color(),
		ServiceLabel:  apt.ServiceType.Label(),
	})
}
