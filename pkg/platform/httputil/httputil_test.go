package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "agendahub/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error collapses to generic message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["statusMessage"] != "internal server error" {
			t.Fatalf("expected generic message, got %q", body["statusMessage"])
		}
	})

	t.Run("conflict carries its message and status", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeConflict, "already registered"))

		if w.Code != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["statusMessage"] != "already registered" {
			t.Fatalf("expected conflict message, got %q", body["statusMessage"])
		}
		if body["statusCode"] != float64(http.StatusConflict) {
			t.Fatalf("expected statusCode %d in body, got %v", http.StatusConflict, body["statusCode"])
		}
	})

	t.Run("uncoded error maps to internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("boom"))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"id": "abc"})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["statusMessage"] != "success" {
		t.Fatalf("expected success message, got %q", body["statusMessage"])
	}
	data, ok := body["data"].(map[string]any)
	if !ok || data["id"] != "abc" {
		t.Fatalf("expected data payload, got %v", body["data"])
	}
}
