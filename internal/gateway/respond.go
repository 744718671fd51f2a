package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/app-gateway/internal/serviceerr"
)

// writeText answers with the message of err as plain text and the status
// belonging to its service error code.
func writeText(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	var serviceErr *serviceerr.Error
	if errors.As(err, &serviceErr) {
		status = serviceErr.HTTPStatus()
		if serviceErr.Description != "" {
			msg = serviceErr.Description
		}
	}

	http.Error(w, msg, status)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slogctx.Warn(ctx, "Could not write the response", "error", err)
	}
}

func writeJSONError(ctx context.Context, w http.ResponseWriter, err error) {
	serviceErr := serviceerr.From(err)
	msg := serviceErr.Description
	if msg == "" {
		msg = err.Error()
	}

	writeJSON(ctx, w, serviceErr.HTTPStatus(), map[string]string{"error": msg})
}
