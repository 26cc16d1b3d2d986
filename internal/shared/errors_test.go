package shared

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestNewAPIError(t *testing.T) {
	err := NewAPIError("test_code", "test message")
	if err.Code != "test_code" {
		t.Errorf("expected code 'test_code', got '%s'", err.Code)
	}
	if err.Message != "test message" {
		t.Errorf("expected message 'test message', got '%s'", err.Message)
	}
	if err.Details != nil {
		t.Errorf("expected nil details, got %v", err.Details)
	}
}

func TestAPIError_ToHTTP(t *testing.T) {
	apiErr := NewAPIError("code", "message")
	httpErr := apiErr.ToHTTP(http.StatusBadRequest)

	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, httpErr.Code)
	}
	msg, ok := httpErr.Message.(*APIError)
	if !ok {
		t.Fatal("expected message to be *APIError")
	}
	if msg.Code != "code" {
		t.Errorf("expected code 'code', got '%s'", msg.Code)
	}
}

func TestHelpers_StatusCodes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		err    error
	}{
		{"bad request", http.StatusBadRequest, BadRequest("c", "m")},
		{"internal", http.StatusInternalServerError, InternalError("c", "m")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			httpErr, ok := tc.err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected *echo.HTTPError, got %T", tc.err)
			}
			if httpErr.Code != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, httpErr.Code)
			}
		})
	}
}
