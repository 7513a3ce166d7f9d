package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"magazyn-plikow/internal/auth"
	"magazyn-plikow/internal/database"

	"github.com/go-chi/chi/v5"
)

type RegisterRequest struct {
	Email       string  `json:"email" validate:"required,email" example:"jan.kowalski@example.com"`
	Password    string  `json:"password" validate:"required,min=8" example:"password123"`
	DisplayName *string `json:"display_name" example:"Jan Kowalski"`
}

// @Summary      Register a new user
// @Description  Creates a user account with the default storage quota.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        registerRequest  body      RegisterRequest  true  "Registration data"
// @Success      201              {object}  models.User
// @Failure      400              {string}  string "Bad Request"
// @Failure      409              {string}  string "Conflict - email already taken"
// @Failure      500              {string}  string "Internal Server Error"
// @Router       /users [post]
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := s.store.CreateUser(r.Context(), database.CreateUserParams{
		Email:             req.Email,
		PasswordHash:      hash,
		DisplayName:       req.DisplayName,
		StorageLimitBytes: s.config.Storage.DefaultQuotaBytes,
	})
	if err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Printf("ERROR: Failed to create user: %v", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// @Summary      Get current user
// @Description  Retrieves the full record of the currently authenticated user.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "User not found"
// @Router       /me [get]
func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "Failed to retrieve user data", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

type UpdateUserRequest struct {
	DisplayName *string `json:"display_name"`
	Password    *string `json:"password" validate:"omitempty,min=8"`
}

// @Summary      Update current user
// @Description  Updates the display name and/or password of the authenticated user.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        updateRequest  body      UpdateUserRequest  true  "Fields to update"
// @Success      200            {object}  models.User
// @Failure      400            {string}  string "Bad Request"
// @Failure      401            {string}  string "Unauthorized"
// @Failure      500            {string}  string "Internal Server Error"
// @Router       /me [patch]
func (s *Server) UpdateCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.DisplayName == nil && req.Password == nil {
		http.Error(w, "No update operation specified (provide 'display_name' or 'password')", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			http.Error(w, "Failed to process password", http.StatusInternalServerError)
			return
		}
		if err := s.store.UpdateUserPassword(r.Context(), claims.UserID, hash); err != nil {
			http.Error(w, "Failed to update password", http.StatusInternalServerError)
			return
		}
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil || user == nil {
		http.Error(w, "Failed to retrieve user data", http.StatusInternalServerError)
		return
	}

	if req.DisplayName != nil {
		user, err = s.store.UpdateUserDisplayName(r.Context(), claims.UserID, req.DisplayName)
		if err != nil {
			http.Error(w, "Failed to update display name", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// @Summary      Delete a user
// @Description  Deletes an account. A user may delete themselves; administrators may delete anyone.
// @Tags         users
// @Security     BearerAuth
// @Param        userId  path  int  true  "User ID"
// @Success      204  {null}    nil "No Content"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      403  {string}  string "Forbidden"
// @Failure      404  {string}  string "User not found"
// @Router       /users/{userId} [delete]
func (s *Server) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID format", http.StatusBadRequest)
		return
	}

	if userID != claims.UserID && !claims.IsAdmin {
		http.Error(w, "You do not have permission to do that", http.StatusForbidden)
		return
	}

	deleted, err := s.store.DeleteUser(r.Context(), userID)
	if err != nil {
		log.Printf("ERROR: Failed to delete user %d: %v", userID, err)
		http.Error(w, "Failed to delete user", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary      Promote a user to admin
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path  int  true  "User ID"
// @Success      200  {object}  models.User
// @Failure      403  {string}  string "Forbidden"
// @Failure      404  {string}  string "User not found"
// @Router       /users/{userId}/promote [post]
func (s *Server) PromoteUserHandler(w http.ResponseWriter, r *http.Request) {
	s.changeRole(w, r, true)
}

// @Summary      Demote a user from admin
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path  int  true  "User ID"
// @Success      200  {object}  models.User
// @Failure      403  {string}  string "Forbidden"
// @Failure      404  {string}  string "User not found"
// @Router       /users/{userId}/demote [post]
func (s *Server) DemoteUserHandler(w http.ResponseWriter, r *http.Request) {
	s.changeRole(w, r, false)
}

func (s *Server) changeRole(w http.ResponseWriter, r *http.Request, isAdmin bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID format", http.StatusBadRequest)
		return
	}

	user, err := s.store.SetAdmin(r.Context(), userID, isAdmin)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to change role", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

type SetStorageLimitRequest struct {
	UserID int64 `json:"user_id" example:"2"`
	// Raw number so that a non-numeric value can be rejected with 400
	// instead of being silently coerced.
	NewLimitBytes json.Number `json:"new_limit_bytes" swaggertype:"integer" example:"1073741824"`
}

// @Summary      Set a user's storage limit
// @Description  Admin operation. Changes the storage byte ceiling of an account.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        limitRequest  body      SetStorageLimitRequest  true  "New limit"
// @Success      200           {object}  models.User
// @Failure      400           {string}  string "Provided value is not a number"
// @Failure      403           {string}  string "Forbidden"
// @Failure      404           {string}  string "User not found"
// @Router       /users/storage-limit [post]
func (s *Server) SetStorageLimitHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req SetStorageLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	newLimit, err := req.NewLimitBytes.Int64()
	if err != nil || newLimit < 0 {
		http.Error(w, "Provided value is not a number", http.StatusBadRequest)
		return
	}

	user, err := s.store.SetStorageLimit(r.Context(), req.UserID, claims.UserID, newLimit)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Printf("ERROR: Failed to set storage limit for user %d: %v", req.UserID, err)
		http.Error(w, "Failed to set storage limit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// @Summary      Get storage usage
// @Description  Retrieves the configured limit, current usage and remaining space for the authenticated user. Remaining space may be negative if the limit was lowered below current usage.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  database.StorageUsage
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "User not found"
// @Router       /me/storage [get]
func (s *Server) GetStorageUsageHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	usage, err := s.store.GetStorageUsage(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve storage usage", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(usage)
}
