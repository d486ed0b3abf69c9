package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(map[string]int{"count": 2}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.String() != "{\"count\":2}\n" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().Status(http.StatusNoContent).Write(w)

	if w.Code != http.StatusNoContent {
		t.Errorf("Status code = %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Body = %q, want empty", w.Body.String())
	}
}

func TestJSONResponseBuilder_Attachment(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Attachment("smart-ledger-backup-2024-01-02.json").
		Header("X-Custom", "value").
		Body([]string{}).
		Write(w)

	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="smart-ledger-backup-2024-01-02.json"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Error("custom header not set")
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().Body(make(chan int)).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name     string
		builder  *JSONResponseBuilder
		wantCode int
		wantMsg  string
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest, "bad"},
		{"unauthorized", UnauthorizedError("who"), http.StatusUnauthorized, "who"},
		{"not found", NotFoundError("gone"), http.StatusNotFound, "gone"},
		{"conflict", ConflictError("confirm"), http.StatusConflict, "confirm"},
		{"unprocessable", UnprocessableEntityError("invalid <x>"), http.StatusUnprocessableEntity, "invalid <x>"},
		{"internal", InternalServerError("oops"), http.StatusInternalServerError, "oops"},
		{"method", MethodNotAllowedError("GET"), http.StatusMethodNotAllowed, "method not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantCode {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantCode)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if body.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMsg)
			}
		})
	}
}

func TestUnauthorizedError_Challenge(t *testing.T) {
	w := httptest.NewRecorder()
	UnauthorizedError("x").Write(w)
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}
}
