package handlers

import (
	"encoding/json"
	"net/http"

	"ChatRelay/server/internal/models"
)

func SendOtp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identity string `json:"identity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" {
		writeError(w, models.ErrValidation)
		return
	}

	if err := otpService.RequestOtp(r.Context(), req.Identity); err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Code sent"})
}

func VerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identity string `json:"identity"`
		Code     string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" || req.Code == "" {
		writeError(w, models.ErrValidation)
		return
	}

	if err := otpService.VerifyOtp(r.Context(), req.Identity, req.Code); err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Code verified"})
}
