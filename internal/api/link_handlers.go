package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"magazyn-plikow/internal/database"

	"github.com/go-chi/chi/v5"
	"github.com/jaevor/go-nanoid"
)

type CreateShareLinkRequest struct {
	FileID      string `json:"file_id" validate:"required" example:"_vx2a-43VqRT5wz_s9u4a"`
	Description string `json:"description" example:"Zdjęcia z wakacji"`
	// Minutes until the link stops working.
	TTLMinutes int `json:"ttl_minutes" validate:"required,gt=0" example:"1440"`
	// Optional subset of user ids allowed to redeem the link. Empty means
	// anyone with the token.
	AuthorizedUsers []int64 `json:"authorized_users"`
}

// @Summary      Create a share link
// @Description  Mints a time-bounded link granting access to a file. Creation is gated by the same rule as direct sharing. The link is valid strictly before its expiry timestamp.
// @Tags         links
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        linkRequest  body      CreateShareLinkRequest  true  "Link details"
// @Success      201          {object}  models.ShareLink
// @Failure      400          {string}  string "Bad Request"
// @Failure      401          {string}  string "Unauthorized"
// @Failure      404          {string}  string "File not found"
// @Failure      500          {string}  string "Internal Server Error"
// @Router       /links [post]
func (s *Server) CreateShareLinkHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req CreateShareLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	generateToken, err := nanoid.Standard(32)
	if err != nil {
		log.Printf("CRITICAL: Failed to initialize nanoid generator: %v", err)
		http.Error(w, "Internal server error (token generation)", http.StatusInternalServerError)
		return
	}

	link, err := s.store.CreateShareLink(r.Context(), database.CreateShareLinkParams{
		Token:           generateToken(),
		FileID:          req.FileID,
		OwnerID:         claims.UserID,
		Description:     req.Description,
		AuthorizedUsers: req.AuthorizedUsers,
		ExpiresAt:       time.Now().Add(time.Duration(req.TTLMinutes) * time.Minute),
	})
	if err != nil {
		writeAccessError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(link)
}

// @Summary      List my share links
// @Tags         links
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.ShareLink
// @Failure      401  {string}  string "Unauthorized"
// @Router       /links [get]
func (s *Server) ListShareLinksHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	limit, offset := parsePagination(r)

	links, err := s.store.ListShareLinks(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to list share links", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(links)
}

// @Summary      Delete a share link
// @Description  Deletes a link. Only the link's creator may do this.
// @Tags         links
// @Security     BearerAuth
// @Param        linkId  path  int  true  "Link ID"
// @Success      204  {null}    nil "No Content"
// @Failure      400  {string}  string "Bad Request"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Link not found"
// @Router       /links/{linkId} [delete]
func (s *Server) DeleteShareLinkHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	linkID, err := strconv.ParseInt(chi.URLParam(r, "linkId"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid link ID format", http.StatusBadRequest)
		return
	}

	deleted, err := s.store.DeleteShareLink(r.Context(), linkID, claims.UserID)
	if err != nil {
		http.Error(w, "Failed to delete share link", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "Share link not found or you do not have permission to delete it", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary      Download via a share link
// @Description  Redeems a share link token and streams the file. Works without authentication unless the link carries an authorized-user subset, in which case a valid token identifying one of the listed users is required. Expired links return 410.
// @Tags         links
// @Produce      application/octet-stream
// @Param        token     path   string  true   "Link token"
// @Param        buffered  query  int     false  "Fully buffer the file before sending"
// @Success      200  {file}    file
// @Failure      401  {string}  string "Unauthorized - link restricted to specific users"
// @Failure      404  {string}  string "Link not found"
// @Failure      410  {string}  string "Link expired"
// @Router       /links/{token}/content [get]
func (s *Server) DownloadViaLinkHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	// Anonymous callers resolve with user id 0, which never matches a
	// real account.
	var userID int64
	if claims := GetUserFromContext(r.Context()); claims != nil {
		userID = claims.UserID
	}

	file, err := s.store.ResolveShareLink(r.Context(), token, userID)
	if err != nil {
		writeAccessError(w, err)
		return
	}

	s.serveFile(w, r, file)
}
