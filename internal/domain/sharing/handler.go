package sharing

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
	api.POST("/agreements", h.CreateAgreement)
	api.GET("/agreements/:id", h.GetAgreement)
	api.DELETE("/agreements/:id", h.RevokeAgreement)
	api.GET("/patients/:id/agreements", h.ListPatientAgreements)
}

type createAgreementRequest struct {
	RecipientID        uuid.UUID `json:"recipient_id"`
	DataCategories     []string  `json:"data_categories"`
	Purpose            string    `json:"purpose"`
	DurationDays       uint64    `json:"duration_days"`
	AnonymizationLevel int       `json:"anonymization_level"`
	CompensationAmount int64     `json:"compensation_amount"`
	IsRevocable        bool      `json:"is_revocable"`
}

// CreateAgreement opens a sharing agreement. The patient is the
// authenticated caller; agreements are always patient-initiated.
func (h *Handler) CreateAgreement(c echo.Context) error {
	var req createAgreementRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	patientID := auth.CallerFromContext(c.Request().Context())
	a, err := h.svc.Create(c.Request().Context(), CreateParams{
		PatientID:          patientID,
		RecipientID:        req.RecipientID,
		DataCategories:     req.DataCategories,
		Purpose:            req.Purpose,
		DurationDays:       req.DurationDays,
		AnonymizationLevel: req.AnonymizationLevel,
		CompensationAmount: req.CompensationAmount,
		IsRevocable:        req.IsRevocable,
	})
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAgreement(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) RevokeAgreement(c echo.Context) error {
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

func (h *Handler) ListPatientAgreements(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if recipientParam := c.QueryParam("recipient"); recipientParam != "" {
		recipientID, err := uuid.Parse(recipientParam)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid recipient id")
		}
		items, err := h.svc.FindActiveAgreements(c.Request().Context(), patientID, recipientID)
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
