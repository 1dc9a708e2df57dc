package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type sampleRequest struct {
	Engine string `query:"engine" validate:"required"`
	Format string `query:"format" default:"tile" validate:"oneof=tile indicator chart"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=2000"`
}

func newTestContext(t *testing.T, target string) echo.Context {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec)
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	c := newTestContext(t, "/?engine=vol_regime")

	var req sampleRequest
	if verr := ReadAndValidateRequest(c, &req); verr != nil {
		t.Fatalf("unexpected validation error: %v", verr)
	}
	if req.Format != "tile" {
		t.Errorf("Format default = %q, want tile", req.Format)
	}
	if req.Limit != 100 {
		t.Errorf("Limit default = %d, want 100", req.Limit)
	}
}

func TestReadAndValidateRequestReportsFields(t *testing.T) {
	c := newTestContext(t, "/?format=bogus&limit=5000")

	var req sampleRequest
	verr := ReadAndValidateRequest(c, &req)
	if verr == nil {
		t.Fatal("expected validation errors")
	}
	errs, ok := verr.([]ValidationError)
	if !ok {
		t.Fatalf("payload type = %T, want []ValidationError", verr)
	}

	codes := make(map[string]string)
	for _, e := range errs {
		codes[e.Field] = e.Code
	}
	if codes["Engine"] != "ERR_REQUIRED" {
		t.Errorf("Engine code = %q, want ERR_REQUIRED", codes["Engine"])
	}
	if codes["Format"] != "ERR_ONEOF" {
		t.Errorf("Format code = %q, want ERR_ONEOF", codes["Format"])
	}
	if codes["Limit"] != "ERR_LTE" {
		t.Errorf("Limit code = %q, want ERR_LTE", codes["Limit"])
	}
}

func TestAppErrorResponseStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	if err := AppErrorResponse(c, NotFoundErrorf("no data for %s", "vol_regime")); err != nil {
		t.Fatalf("AppErrorResponse: %v", err)
	}

	var body APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != http.StatusNotFound {
		t.Errorf("envelope status = %d, want 404", body.Status)
	}
}
