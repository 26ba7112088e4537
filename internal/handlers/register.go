package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"ChatRelay/server/internal/config"
	"ChatRelay/server/internal/models"

	"github.com/golang-jwt/jwt/v4"
)

const tokenValidity = 30 * 24 * time.Hour

func issueToken(userID int, username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(tokenValidity).Unix(),
	})
	return token.SignedString([]byte(config.Current().JWTSecret))
}

func Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Email == "" || req.Password == "" {
		log.Printf("Invalid register request: %v", err)
		writeError(w, models.ErrValidation)
		return
	}

	ctx := r.Context()

	exists, err := userService.CheckUserExists(ctx, req.Username, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	if exists {
		writeError(w, models.ErrDuplicateIdentity)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: req.Password,
	}

	userID, err := userService.CreateUser(ctx, user)
	if err != nil {
		log.Printf("Error creating user: %v", err)
		writeError(w, err)
		return
	}

	tokenString, err := issueToken(userID, req.Username)
	if err != nil {
		log.Printf("Error creating token for user %d: %v", userID, err)
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id": userID,
		"token":   tokenString,
	})
}
