package access

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medconsent/medconsent/internal/platform/auth"
	"github.com/medconsent/medconsent/internal/platform/errcode"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/access/authorize", h.Authorize)
}

type authorizeRequest struct {
	PatientID         uuid.UUID `json:"patient_id"`
	Category          string    `json:"category"`
	IsEmergency       bool      `json:"is_emergency"`
	RecordSensitivity bool      `json:"record_sensitivity"`
}

// Authorize checks whether the authenticated caller may access the
// patient's data. Called by the content store before releasing anything.
func (h *Handler) Authorize(c echo.Context) error {
	var req authorizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	requesterID := auth.CallerFromContext(c.Request().Context())
	d, err := h.svc.Authorize(c.Request().Context(), requesterID, req.PatientID,
		req.Category, req.IsEmergency, req.RecordSensitivity)
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusOK, d)
}
