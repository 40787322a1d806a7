package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/metrics"
)

type sendOTPRequest struct {
	UsernameEmail string `json:"username_email"`
}

type sendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SendOTP issues a one-time code to the email address of the named user.
// The code is delivered but not retained.
func (h *Handlers) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sendOTPResponse{Message: "Invalid request data"})
		return
	}

	user, err := h.app.Credentials.LookupContact(r.Context(), req.UsernameEmail)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			metrics.RecordAuth("send_otp", "not_found")
			writeJSON(w, http.StatusOK, sendOTPResponse{Message: "User not found"})
			return
		}
		h.logger.ErrorContext(r.Context(), "lookup contact", "error", err)
		writeJSON(w, http.StatusInternalServerError, sendOTPResponse{Message: "Failed to send OTP"})
		return
	}
	if user.Email == nil || *user.Email == "" {
		metrics.RecordAuth("send_otp", "no_address")
		writeJSON(w, http.StatusOK, sendOTPResponse{Message: "No email address on file"})
		return
	}

	code, err := auth.GenerateOneTimeCode()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "generate one-time code", "error", err)
		writeJSON(w, http.StatusInternalServerError, sendOTPResponse{Message: "Failed to send OTP"})
		return
	}

	if err := h.app.Notifier.SendOneTimeCode(r.Context(), *user.Email, code); err != nil {
		metrics.RecordAuth("send_otp", "error")
		h.logger.ErrorContext(r.Context(), "send one-time code", "error", err, "username", user.Username)
		writeJSON(w, http.StatusOK, sendOTPResponse{Message: "Failed to send OTP"})
		return
	}

	metrics.RecordAuth("send_otp", "success")
	writeJSON(w, http.StatusOK, sendOTPResponse{Success: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
