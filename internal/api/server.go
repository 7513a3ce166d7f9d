package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"magazyn-plikow/internal/config"
	"magazyn-plikow/internal/database"
	"magazyn-plikow/internal/storage"
	"magazyn-plikow/internal/websocket"

	"github.com/go-playground/validator/v10"
)

type Server struct {
	config   *config.Config
	store    *database.Store
	storage  *storage.LocalStorage
	wsHub    *websocket.Hub
	validate *validator.Validate
}

func NewServer(cfg *config.Config, store *database.Store, storage *storage.LocalStorage, wsHub *websocket.Hub) *Server {
	return &Server{
		config:   cfg,
		store:    store,
		storage:  storage,
		wsHub:    wsHub,
		validate: validator.New(),
	}
}

// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.GetPool().Ping(r.Context()); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func parsePagination(r *http.Request) (int, int) {
	limit := 100
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
