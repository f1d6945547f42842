package grant

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
	api.POST("/grants", h.CreateGrant)
	api.GET("/grants/:id", h.GetGrant)
	api.DELETE("/grants/:id", h.RevokeGrant)
	api.GET("/patients/:id/grants", h.ListPatientGrants)
}

type createGrantRequest struct {
	PatientID    uuid.UUID `json:"patient_id"`
	ProviderID   uuid.UUID `json:"provider_id"`
	Categories   []string  `json:"categories"`
	Level        int       `json:"level"`
	DurationDays uint64    `json:"duration_days"`
	Purpose      string    `json:"purpose"`
	Conditions   string    `json:"conditions"`
	AutoRevoke   bool      `json:"auto_revoke"`
}

func (h *Handler) CreateGrant(c echo.Context) error {
	var req createGrantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	g, err := h.svc.Grant(c.Request().Context(), GrantParams{
		PatientID:    req.PatientID,
		ProviderID:   req.ProviderID,
		Categories:   req.Categories,
		Level:        Level(req.Level),
		DurationDays: req.DurationDays,
		Purpose:      req.Purpose,
		Conditions:   req.Conditions,
		AutoRevoke:   req.AutoRevoke,
	})
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) GetGrant(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	g, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) RevokeGrant(c echo.Context) error {
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

func (h *Handler) ListPatientGrants(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	// ?provider=...&category=... narrows to the live grants for that pair.
	if providerParam := c.QueryParam("provider"); providerParam != "" {
		providerID, err := uuid.Parse(providerParam)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
		}
		category := c.QueryParam("category")
		items, err := h.svc.FindActiveGrants(c.Request().Context(), patientID, providerID, category)
		if err != nil {
			return errcode.Respond(c, err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, len(items), len(items), 0))
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
