package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"magazyn-plikow/internal/database"
	"magazyn-plikow/internal/models"

	"github.com/go-chi/chi/v5"
)

type GrantAccessRequest struct {
	UserID int64 `json:"user_id" example:"2"`
}

// @Summary      Share a file with a user
// @Description  Adds a user to the file's authorized set. Anyone who may access the file may grant access to further users. Granting to a user who already has access fails with 409.
// @Tags         shares
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        fileId        path      string              true  "File ID"
// @Param        grantRequest  body      GrantAccessRequest  true  "Target user"
// @Success      200           {object}  models.File
// @Failure      400           {string}  string "Bad Request"
// @Failure      401           {string}  string "Unauthorized"
// @Failure      404           {string}  string "Not Found - file or target user not found"
// @Failure      409           {string}  string "Conflict - user already has access"
// @Failure      500           {string}  string "Internal Server Error"
// @Router       /files/{fileId}/share [post]
func (s *Server) GrantAccessHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	fileID := chi.URLParam(r, "fileId")

	var req GrantAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.UserID == claims.UserID {
		http.Error(w, "Cannot share a file with yourself", http.StatusBadRequest)
		return
	}

	var updated *models.File

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		var err error
		updated, err = q.GrantAccess(r.Context(), fileID, claims.UserID, req.UserID)
		if err != nil {
			return err
		}

		payload := map[string]interface{}{"file_info": updated}
		return q.LogEvent(r.Context(), req.UserID, "file_shared_with_you", payload)
	})

	if txErr != nil {
		writeAccessError(w, txErr)
		return
	}

	payload := map[string]interface{}{"file_info": updated}
	eventMsg := map[string]interface{}{"event_type": "file_shared_with_you", "payload": payload}
	eventBytes, _ := json.Marshal(eventMsg)
	s.wsHub.PublishEvent(req.UserID, eventBytes)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// @Summary      Revoke a user's access to a file
// @Description  Removes a user from the file's authorized set. Revoking a user who never had access is a no-op and still returns the file.
// @Tags         shares
// @Produce      json
// @Security     BearerAuth
// @Param        fileId  path  string  true  "File ID"
// @Param        userId  path  int     true  "Target user ID"
// @Success      200  {object}  models.File
// @Failure      400  {string}  string "Bad Request"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Not Found - file or target user not found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /files/{fileId}/share/{userId} [delete]
func (s *Server) RevokeAccessHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	fileID := chi.URLParam(r, "fileId")

	targetID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid user ID format", http.StatusBadRequest)
		return
	}

	var updated *models.File

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		var err error
		updated, err = q.RevokeAccess(r.Context(), fileID, claims.UserID, targetID)
		if err != nil {
			return err
		}

		payload := map[string]string{"file_id": fileID}
		return q.LogEvent(r.Context(), targetID, "share_revoked_for_you", payload)
	})

	if txErr != nil {
		writeAccessError(w, txErr)
		return
	}

	payload := map[string]string{"file_id": fileID}
	eventMsg := map[string]interface{}{"event_type": "share_revoked_for_you", "payload": payload}
	eventBytes, _ := json.Marshal(eventMsg)
	s.wsHub.PublishEvent(targetID, eventBytes)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// @Summary      Check access to a file
// @Description  Returns the caller's access level for a file: owner or shared. A user without access receives 401.
// @Tags         shares
// @Produce      json
// @Security     BearerAuth
// @Param        fileId  path  string  true  "File ID"
// @Success      200  {object}  map[string]string
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "File not found"
// @Router       /files/{fileId}/access [get]
func (s *Server) CheckAccessHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	fileID := chi.URLParam(r, "fileId")

	level, err := s.store.Authorize(r.Context(), fileID, claims.UserID)
	if err != nil {
		writeAccessError(w, err)
		return
	}

	access := "shared"
	if level == database.AccessOwner {
		access = "owner"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"access": access})
}
