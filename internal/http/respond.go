package http

import (
	"encoding/json"
	"net/http"

	pkgerrors "github.com/fjod/go_cart/storefront/internal/errors"
	"github.com/fjod/go_cart/storefront/internal/logger"
	zlog "github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zlog.Error().Err(err).Msg("failed to encode response")
	}
}

// respondError maps err onto its HTTP status and public message. Internal
// failures are logged with the request's context.
func respondError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	code := pkgerrors.CodeInternal
	typed := pkgerrors.As(err)
	if typed != nil {
		code = typed.Code()
	}
	meta := pkgerrors.MetadataFor(code)

	resp := ErrorResponse{
		Error: pkgerrors.PublicMessage(err),
		Code:  string(code),
	}
	if typed != nil && meta.DetailsAllowed {
		resp.Details = typed.Details()
	}
	if meta.HTTPStatus >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", err)
	}
	respondJSON(w, meta.HTTPStatus, resp)
}
