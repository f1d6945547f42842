package emergency

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medconsent/medconsent/internal/platform/auth"
	"github.com/medconsent/medconsent/internal/platform/errcode"
	"github.com/medconsent/medconsent/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/emergency-access", h.InvokeAccess)
	api.GET("/emergency-access/:id", h.GetStatus)
	api.DELETE("/emergency-access/:id", h.RevokeEpisode)
	api.GET("/patients/:id/emergency-access", h.ListPatientEpisodes)
}

type invokeRequest struct {
	PatientID     uuid.UUID `json:"patient_id"`
	EmergencyType string    `json:"emergency_type"`
	RecordRef     string    `json:"record_ref"`
}

// InvokeAccess records one emergency record access. The provider is the
// authenticated caller, never a body field.
func (h *Handler) InvokeAccess(c echo.Context) error {
	var req invokeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	providerID := auth.CallerFromContext(c.Request().Context())
	ep, err := h.svc.Invoke(c.Request().Context(), providerID, req.PatientID, req.EmergencyType, req.RecordRef)
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, ep)
}

type statusResponse struct {
	Episode *Episode `json:"episode"`
	State   string   `json:"state"`
}

func (h *Handler) GetStatus(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ep, state, err := h.svc.Status(c.Request().Context(), id)
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusOK, statusResponse{Episode: ep, State: state})
}

func (h *Handler) RevokeEpisode(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	caller := auth.CallerFromContext(c.Request().Context())
	if err := h.svc.Revoke(c.Request().Context(), id, caller); err != nil {
		return errcode.Respond(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPatientEpisodes(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
