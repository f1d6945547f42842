package audit

import (
	"net/http"

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
	api.POST("/access-log", h.LogAccess)
	api.GET("/patients/:id/access-log", h.ListAccessLog)
	api.POST("/violations", h.ReportViolation)
	api.GET("/patients/:id/compliance", h.GetCompliance)
}

type logAccessRequest struct {
	PatientID    uuid.UUID `json:"patient_id"`
	RecordRef    string    `json:"record_ref"`
	AccessType   string    `json:"access_type"`
	Reason       string    `json:"reason"`
	WasEmergency bool      `json:"was_emergency"`
}

// LogAccess appends an access log entry. The provider is the authenticated
// caller; the data-release path invokes this after an allowed decision.
func (h *Handler) LogAccess(c echo.Context) error {
	var req logAccessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	providerID := auth.CallerFromContext(c.Request().Context())
	e, err := h.svc.LogAccess(c.Request().Context(), LogParams{
		PatientID:    req.PatientID,
		ProviderID:   providerID,
		RecordRef:    req.RecordRef,
		AccessType:   req.AccessType,
		Reason:       req.Reason,
		WasEmergency: req.WasEmergency,
	})
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListAccessLog(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAccessLog(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type reportViolationRequest struct {
	PatientID uuid.UUID `json:"patient_id"`
	Kind      string    `json:"kind"`
	Details   string    `json:"details"`
}

func (h *Handler) ReportViolation(c echo.Context) error {
	var req reportViolationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	caller := auth.CallerFromContext(c.Request().Context())
	a, err := h.svc.ReportViolation(c.Request().Context(), caller, req.PatientID, req.Kind, req.Details)
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

type complianceResponse struct {
	Audit *ComplianceAudit `json:"audit"`
	Score int              `json:"score"`
}

func (h *Handler) GetCompliance(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, score, err := h.svc.ComplianceScore(c.Request().Context(), patientID)
	if err != nil {
		return errcode.Respond(c, err)
	}
	return c.JSON(http.StatusOK, complianceResponse{Audit: a, Score: score})
}
