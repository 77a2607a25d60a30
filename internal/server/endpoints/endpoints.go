package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackzampolin/binder/internal/api"
	"github.com/jackzampolin/binder/internal/layout"
	"github.com/jackzampolin/binder/internal/section"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Section endpoints
		&AddSectionsEndpoint{},
		&ListSectionsEndpoint{},
		&ClearSectionsEndpoint{},
		&UpdateSectionEndpoint{},
		&MoveSectionEndpoint{},
		&RemoveSectionEndpoint{},

		// Layout endpoints
		&GetLayoutEndpoint{},
		&UpdateLayoutEndpoint{},

		// Preview endpoints
		&RegenerateEndpoint{},
		&PreviewStatusEndpoint{},
		&PreviewPDFEndpoint{},
		&SavePreviewEndpoint{},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, section.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, section.ErrIndexOutOfRange), errors.Is(err, layout.ErrInvalidLayout):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
