package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"ChatRelay/server/internal/models"
)

func SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	searchTerm := r.URL.Query().Get("search")
	if searchTerm == "" {
		writeError(w, models.ErrValidation)
		return
	}

	users, err := userService.SearchUsers(r.Context(), searchTerm, userID)
	if err != nil {
		log.Printf("Error searching users: %v", err)
		writeError(w, err)
		return
	}

	if users == nil {
		users = []models.UserSummary{}
	}
	respondJSON(w, http.StatusOK, users)
}

func GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := userService.GetUserById(r.Context(), userID)
	if err != nil {
		log.Printf("Error fetching user profile: %v", err)
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

func UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Username  string  `json:"username"`
		AvatarURL *string `json:"avatar_url"`
		Password  string  `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.ErrValidation)
		return
	}

	updated := &models.User{
		Username:     req.Username,
		AvatarURL:    req.AvatarURL,
		PasswordHash: req.Password,
	}
	if err := userService.UpdateUser(r.Context(), userID, updated); err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Profile updated"})
}

func BlockUser(w http.ResponseWriter, r *http.Request) {
	handleBlockChange(w, r, true)
}

func UnblockUser(w http.ResponseWriter, r *http.Request) {
	handleBlockChange(w, r, false)
}

func handleBlockChange(w http.ResponseWriter, r *http.Request, block bool) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		UserID int `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 || req.UserID == userID {
		writeError(w, models.ErrValidation)
		return
	}

	if _, err := userService.GetUserById(r.Context(), req.UserID); err != nil {
		writeError(w, err)
		return
	}

	var err error
	var message string
	if block {
		err = userService.BlockUser(r.Context(), userID, req.UserID)
		message = "User blocked"
	} else {
		err = userService.UnblockUser(r.Context(), userID, req.UserID)
		message = "User unblocked"
	}
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}
