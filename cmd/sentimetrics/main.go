package main

import (
	"context"
	"log"
	"net/http"

	"sentimetrics/internal/api"
	"sentimetrics/internal/config"
	"sentimetrics/internal/session"
	"sentimetrics/internal/storage"
	"sentimetrics/internal/store"
	"sentimetrics/internal/upstream"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly
	godotenv.Load()

	cfg := config.Load()

	s, err := store.New(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer s.Close()

	exports, err := storage.FromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize export storage: %v", err)
	}

	// The client reads the token through the session; the session calls
	// the backend through the client.
	var sess *session.Session
	client := upstream.New(cfg.UpstreamBase, func() string { return sess.Token() })
	sess = session.New(s, client)
	sess.Hydrate()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sess.StartRefreshLoop(ctx, cfg.RefreshInterval)

	a := api.New(sess, client, s, exports)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Mount("/api", a.Routes())

	log.Printf("Sentimetrics starting on http://localhost%s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
