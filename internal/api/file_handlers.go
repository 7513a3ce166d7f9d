package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"magazyn-plikow/internal/database"
	"magazyn-plikow/internal/models"
	"magazyn-plikow/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/jaevor/go-nanoid"
)

func (s *Server) generateUniqueFileID(ctx context.Context) (string, error) {
	maxRetries := 10

	generateID, err := nanoid.Standard(21)
	if err != nil {
		return "", fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	for i := 0; i < maxRetries; i++ {
		id := generateID()
		exists, err := s.store.FileExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check for file existence: %w", err)
		}
		if !exists {
			return id, nil
		}
	}

	return "", fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}

// @Summary      Upload a file
// @Description  Uploads a file. The owner's storage quota is reserved first; an upload that would meet or exceed the limit is rejected and nothing is stored.
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "File content"
// @Success      201   {object}  models.File
// @Failure      400   {string}  string "Bad Request"
// @Failure      401   {string}  string "Unauthorized"
// @Failure      403   {string}  string "Forbidden - storage limit reached"
// @Failure      500   {string}  string "Internal Server Error"
// @Router       /files [post]
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<30)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing multipart form", http.StatusBadRequest)
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error retrieving the file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	fileID, err := s.generateUniqueFileID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	fragment := storage.PathFragment(fileID)
	if err := s.storage.Save(fragment, handler.Filename, file); err != nil {
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}

	sizeBytes := handler.Size
	mimeType := handler.Header.Get("Content-Type")

	var created *models.File

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		if _, err := q.ReserveStorage(r.Context(), claims.UserID, sizeBytes); err != nil {
			return err
		}

		var txErr error
		created, txErr = q.CreateFile(r.Context(), database.CreateFileParams{
			ID:           fileID,
			OwnerID:      claims.UserID,
			Name:         handler.Filename,
			PathFragment: fragment,
			SizeBytes:    sizeBytes,
			MimeType:     &mimeType,
		})
		return txErr
	})

	if txErr != nil {
		// The record did not land, so the blob must not stay either.
		if rmErr := s.storage.Delete(fragment, handler.Filename); rmErr != nil {
			log.Printf("ERROR: Failed to remove orphaned blob %s: %v", fileID, rmErr)
		}

		switch {
		case errors.Is(txErr, database.ErrStorageLimitReached):
			http.Error(w, txErr.Error(), http.StatusForbidden)
		case errors.Is(txErr, database.ErrUserNotFound):
			http.Error(w, "User not found", http.StatusNotFound)
		default:
			log.Printf("ERROR: Failed to create file record: %v", txErr)
			http.Error(w, "Failed to create file record", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

// @Summary      Download a file
// @Description  Streams the file content. Accessible to the owner and to users in the file's authorized set. Pass buffered=1 to read the whole blob into memory before writing.
// @Tags         files
// @Produce      application/octet-stream
// @Security     BearerAuth
// @Param        fileId    path   string  true   "File ID"
// @Param        buffered  query  int     false  "Fully buffer the file before sending"
// @Success      200  {file}    file
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "File not found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /files/{fileId}/content [get]
func (s *Server) DownloadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	fileID := chi.URLParam(r, "fileId")

	if _, err := s.store.Authorize(r.Context(), fileID, claims.UserID); err != nil {
		writeAccessError(w, err)
		return
	}

	file, err := s.store.GetFileByID(r.Context(), fileID)
	if err != nil || file == nil {
		http.Error(w, "Failed to retrieve file metadata", http.StatusInternalServerError)
		return
	}

	s.serveFile(w, r, file)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, file *models.File) {
	w.Header().Set("Content-Disposition", "attachment; filename=\""+file.Name+"\"")
	if file.MimeType != nil && *file.MimeType != "" {
		w.Header().Set("Content-Type", *file.MimeType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", file.SizeBytes))

	if r.URL.Query().Get("buffered") == "1" {
		data, err := s.storage.ReadAll(file.PathFragment, file.Name)
		if err != nil {
			http.Error(w, "File not found on storage", http.StatusInternalServerError)
			return
		}
		w.Write(data)
		return
	}

	stream, err := s.storage.Open(file.PathFragment, file.Name)
	if err != nil {
		http.Error(w, "File not found on storage", http.StatusInternalServerError)
		return
	}
	defer stream.Close()

	io.Copy(w, stream)
}

// @Summary      Delete a file
// @Description  Deletes a file. Only the owner may delete. The owner's storage usage counter is released by the file's recorded size in the same transaction.
// @Tags         files
// @Security     BearerAuth
// @Param        fileId  path  string  true  "File ID"
// @Success      204  {null}    nil "No Content"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "File not found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /files/{fileId} [delete]
func (s *Server) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	fileID := chi.URLParam(r, "fileId")

	var deleted *models.File

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		var err error
		deleted, err = q.DeleteFile(r.Context(), fileID, claims.UserID)
		if err != nil {
			return err
		}

		_, err = q.ReleaseStorage(r.Context(), claims.UserID, deleted.SizeBytes)
		return err
	})

	if txErr != nil {
		if errors.Is(txErr, database.ErrFileNotFound) {
			http.Error(w, "File not found or you are not the owner", http.StatusNotFound)
			return
		}
		log.Printf("ERROR: Failed to delete file %s: %v", fileID, txErr)
		http.Error(w, "Failed to delete file", http.StatusInternalServerError)
		return
	}

	if err := s.storage.Delete(deleted.PathFragment, deleted.Name); err != nil {
		log.Printf("ERROR: Failed to remove blob for file %s: %v", fileID, err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary      List my files
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        limit   query  int  false  "Number of items to return"  default(100)
// @Param        offset  query  int  false  "Offset for pagination"      default(0)
// @Success      200  {array}   models.File
// @Failure      401  {string}  string "Unauthorized"
// @Router       /files [get]
func (s *Server) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	limit, offset := parsePagination(r)

	files, err := s.store.ListOwnedFiles(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to list files", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(files)
}

// @Summary      List files I have shared
// @Description  Lists owned files whose authorized set is non-empty.
// @Tags         shares
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.File
// @Failure      401  {string}  string "Unauthorized"
// @Router       /shares/outgoing [get]
func (s *Server) ListSharedByMeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	limit, offset := parsePagination(r)

	files, err := s.store.ListSharedByMe(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to list shared files", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(files)
}

// @Summary      List files shared with me
// @Description  Lists files whose authorized set contains the authenticated user.
// @Tags         shares
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.File
// @Failure      401  {string}  string "Unauthorized"
// @Router       /shares/incoming [get]
func (s *Server) ListSharedWithMeHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	limit, offset := parsePagination(r)

	files, err := s.store.ListSharedWithMe(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to list shared files", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(files)
}

func writeAccessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrFileNotFound):
		http.Error(w, "File not found", http.StatusNotFound)
	case errors.Is(err, database.ErrUserNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
	case errors.Is(err, database.ErrAccessDenied):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, database.ErrAlreadyShared):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, database.ErrLinkNotFound):
		http.Error(w, "Share link not found", http.StatusNotFound)
	case errors.Is(err, database.ErrLinkExpired):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		log.Printf("ERROR: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
