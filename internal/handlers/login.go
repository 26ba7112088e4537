package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"ChatRelay/server/internal/models"
	"ChatRelay/server/internal/utils"
)

func Login(w http.ResponseWriter, r *http.Request) {
	var loginData struct {
		Identity string `json:"identity"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	err := json.NewDecoder(r.Body).Decode(&loginData)
	if err != nil || loginData.Password == "" {
		writeError(w, models.ErrValidation)
		return
	}

	// accept either field name; older clients send "email"
	identity := loginData.Identity
	if identity == "" {
		identity = loginData.Email
	}
	if identity == "" {
		writeError(w, models.ErrValidation)
		return
	}

	ctx := r.Context()

	user, err := userService.GetUserByIdentity(ctx, identity)
	if err != nil {
		log.Printf("Login failed for %s: %v", identity, err)
		writeError(w, err)
		return
	}

	if err := utils.CheckPasswordHash(loginData.Password, user.PasswordHash); err != nil {
		log.Printf("Password verification failed for user %d", user.ID)
		writeError(w, models.ErrInvalidCredential)
		return
	}

	tokenString, err := issueToken(user.ID, user.Username)
	if err != nil {
		log.Printf("Error creating token for user %d: %v", user.ID, err)
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": user.ID,
		"token":   tokenString,
	})
}
