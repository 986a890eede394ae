// Package handler holds request helpers shared by the resource handlers.
package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/triage-api/internal/model"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
)

// ParseID reads the :id path parameter.
func ParseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.NewBadRequest("invalid appointment id", err)
	}
	return id, nil
}

// ParseFilters reads date, from, to, shift and status query parameters.
// status may repeat or hold a comma-separated list.
func ParseFilters(c *gin.Context) *model.AppointmentFilters {
	f := &model.AppointmentFilters{
		Date:  c.Query("date"),
		From:  c.Query("from"),
		To:    c.Query("to"),
		Shift: model.Shift(c.Query("shift")),
	}
	for _, raw := range c.QueryArray("status") {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Statuses = append(f.Statuses, model.AppointmentStatus(s))
			}
		}
	}
	return f
}

// BindJSON decodes the body into dst and reports malformed JSON as a bad
// request. Field rules are checked by the services.
func BindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperrors.NewBadRequest("invalid request body", err)
	}
	return nil
}
