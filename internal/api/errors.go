package api

import (
	"net/http"

	"github.com/Proton-105/minibank/internal/errors"
	"github.com/Proton-105/minibank/internal/idempotency"
)

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// statusFor maps the ledger error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrAccountNotFound),
		errors.Is(err, errors.ErrReceiverNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrPhoneTaken),
		errors.Is(err, idempotency.ErrRequestInProgress):
		return http.StatusConflict
	case errors.Is(err, errors.ErrInsufficientFunds),
		errors.Is(err, errors.ErrSelfTransfer),
		errors.Is(err, errors.ErrInvalidAmount):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, idempotency.ErrRequestInProgress) {
		writeJSON(w, http.StatusConflict, errorBody{Code: "E409", Error: err.Error()})
		return
	}

	message, _ := h.errs.Handle(r.Context(), err)

	code := "E000"
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}

	writeJSON(w, statusFor(err), errorBody{Code: code, Error: message})
}
