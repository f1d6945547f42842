package grant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medconsent/medconsent/internal/platform/auth"
)

func newTestHandler() (*Handler, *mockDirectory, *echo.Echo) {
	svc, dir, _ := newTestService()
	return NewHandler(svc), dir, echo.New()
}

func withCaller(req *http.Request, id uuid.UUID) *http.Request {
	ctx := context.WithValue(req.Context(), auth.CallerIDKey, id)
	return req.WithContext(ctx)
}

func TestHandler_CreateGrant(t *testing.T) {
	h, dir, e := newTestHandler()
	patientID := dir.addPatient(true)
	providerID := dir.addProvider()

	body := `{"patient_id":"` + patientID.String() + `","provider_id":"` + providerID.String() + `","categories":["medication"],"level":1,"duration_days":30,"purpose":"treatment"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateGrant(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_CreateGrant_UnknownPatient(t *testing.T) {
	h, dir, e := newTestHandler()
	providerID := dir.addProvider()

	body := `{"patient_id":"` + uuid.New().String() + `","provider_id":"` + providerID.String() + `","categories":["medication"],"level":1,"duration_days":30}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateGrant(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_GetGrant(t *testing.T) {
	h, dir, e := newTestHandler()
	patientID := dir.addPatient(true)
	providerID := dir.addProvider()
	g, err := h.svc.Grant(context.Background(), GrantParams{
		PatientID: patientID, ProviderID: providerID,
		Categories: []string{"lab"}, Level: LevelView, DurationDays: 7,
	})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.GetGrant(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), g.PatientID.String()) {
		t.Errorf("response missing patient id: %s", rec.Body.String())
	}
}

func TestHandler_GetGrant_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("99")

	if err := h.GetGrant(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_RevokeGrant(t *testing.T) {
	h, dir, e := newTestHandler()
	patientID := dir.addPatient(true)
	providerID := dir.addProvider()
	if _, err := h.svc.Grant(context.Background(), GrantParams{
		PatientID: patientID, ProviderID: providerID,
		Categories: []string{"general"}, Level: LevelFull, DurationDays: 30,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	req := withCaller(httptest.NewRequest(http.MethodDelete, "/", nil), patientID)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.RevokeGrant(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_RevokeGrant_WrongCaller(t *testing.T) {
	h, dir, e := newTestHandler()
	patientID := dir.addPatient(true)
	providerID := dir.addProvider()
	if _, err := h.svc.Grant(context.Background(), GrantParams{
		PatientID: patientID, ProviderID: providerID,
		Categories: []string{"general"}, Level: LevelFull, DurationDays: 30,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	req := withCaller(httptest.NewRequest(http.MethodDelete, "/", nil), uuid.New())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.RevokeGrant(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_ListPatientGrants(t *testing.T) {
	h, dir, e := newTestHandler()
	patientID := dir.addPatient(true)
	providerID := dir.addProvider()
	if _, err := h.svc.Grant(context.Background(), GrantParams{
		PatientID: patientID, ProviderID: providerID,
		Categories: []string{"imaging"}, Level: LevelView, DurationDays: 14,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(patientID.String())

	if err := h.ListPatientGrants(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected one grant in listing: %s", rec.Body.String())
	}
}
