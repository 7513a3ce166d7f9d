// @title           Magazyn Plików API
// @version         1.0
// @host            localhost
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log"
	"net/http"

	"magazyn-plikow/internal/api"
	"magazyn-plikow/internal/config"
	"magazyn-plikow/internal/database"
	"magazyn-plikow/internal/storage"
	"magazyn-plikow/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "magazyn-plikow/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Nie można wczytać konfiguracji: %v", err)
	}

	dbpool, err := pgxpool.New(context.Background(), cfg.DB.Source)
	if err != nil {
		log.Fatalf("Nie można połączyć się z bazą danych: %v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(context.Background()); err != nil {
		log.Fatalf("Nie można pingować bazy danych: %v", err)
	}
	log.Println("Pomyślnie połączono z bazą danych")

	localStorage, err := storage.NewLocalStorage(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Nie można zainicjować local storage: %v", err)
	}
	log.Printf("Pliki będą przechowywane w: %s", cfg.Storage.Path)

	wsHub := websocket.NewHub()
	go wsHub.Run()

	store := database.NewStore(dbpool)
	server := api.NewServer(cfg, store, localStorage, wsHub)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(api.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("https://localhost/swagger/doc.json"),
	))

	r.Get("/ws", server.ServeWsHandler)

	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/v1/auth/login", server.LoginHandler)
	r.Post("/api/v1/auth/refresh", server.RefreshTokenHandler)
	r.Post("/api/v1/users", server.RegisterHandler)

	r.With(server.OptionalAuthMiddleware).
		Get("/api/v1/links/{token}/content", server.DownloadViaLinkHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(server.AuthMiddleware)

		r.Post("/auth/logout", server.LogoutHandler)
		r.Get("/sessions", server.ListSessionsHandler)
		r.Delete("/sessions/{sessionId}", server.DeleteSessionHandler)
		r.Post("/sessions/terminate_all", server.TerminateAllSessionsHandler)

		r.Get("/me", server.GetCurrentUserHandler)
		r.Patch("/me", server.UpdateCurrentUserHandler)
		r.Get("/me/storage", server.GetStorageUsageHandler)
		r.Delete("/users/{userId}", server.DeleteUserHandler)

		r.Group(func(r chi.Router) {
			r.Use(server.AdminOnly)
			r.Post("/users/{userId}/promote", server.PromoteUserHandler)
			r.Post("/users/{userId}/demote", server.DemoteUserHandler)
			r.Post("/users/storage-limit", server.SetStorageLimitHandler)
		})

		r.Get("/files", server.ListFilesHandler)
		r.Post("/files", server.UploadFileHandler)
		r.Get("/files/{fileId}/content", server.DownloadFileHandler)
		r.Delete("/files/{fileId}", server.DeleteFileHandler)
		r.Get("/files/{fileId}/access", server.CheckAccessHandler)
		r.Post("/files/{fileId}/share", server.GrantAccessHandler)
		r.Delete("/files/{fileId}/share/{userId}", server.RevokeAccessHandler)

		r.Get("/shares/outgoing", server.ListSharedByMeHandler)
		r.Get("/shares/incoming", server.ListSharedWithMeHandler)

		r.Get("/links", server.ListShareLinksHandler)
		r.Post("/links", server.CreateShareLinkHandler)
		r.Delete("/links/{linkId}", server.DeleteShareLinkHandler)

		r.Get("/events", server.GetEventsHandler)
	})

	log.Printf("Uruchamianie serwera na %s", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, r); err != nil {
		log.Fatalf("Nie można uruchomić serwera: %v", err)
	}
}
