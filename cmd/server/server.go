package server

import (
	"context"
	"net/http"
	"time"

	config "example.com/popular/internal/init"
	"example.com/popular/internal/logger"
	"example.com/popular/internal/middleware"
	"example.com/popular/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	svc       *service.Service
	uploadDir string
}

var logg = logger.New()

func New(svc *service.Service, uploadDir string) *Server {
	return &Server{svc: svc, uploadDir: uploadDir}
}

// routes registers every endpoint. Mutating endpoints act as the user in the JWT.
func (s *Server) routes() http.Handler {
	auth := func(h http.HandlerFunc) http.Handler { return middleware.JWTAuth(h) }
	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("POST /users", s.signupHandler)
	mux.HandleFunc("POST /login", s.loginHandler)
	mux.HandleFunc("GET /users/check-nickname", s.checkNicknameHandler)
	mux.HandleFunc("GET /users/check-email", s.checkEmailHandler)
	mux.HandleFunc("GET /users/{id}", s.getUserHandler)
	mux.HandleFunc("GET /stores/{id}", s.getStoreHandler)
	mux.HandleFunc("GET /feeds/{id}", s.getFeedHandler)
	mux.HandleFunc("GET /feeds/{id}/comments", s.feedCommentsHandler)
	mux.HandleFunc("GET /comments/{id}", s.getCommentHandler)
	mux.HandleFunc("GET /comments/{id}/parent", s.commentParentHandler)
	mux.HandleFunc("GET /comments/{id}/replies", s.commentRepliesHandler)
	mux.HandleFunc("GET /comments/{id}/root", s.commentRootHandler)

	// Protected endpoints with JWT authentication middleware
	mux.Handle("GET /users/me", auth(s.getMeHandler))
	mux.Handle("PATCH /users/me", auth(s.updateMeHandler))
	mux.Handle("DELETE /users/me", auth(s.deleteMeHandler))
	mux.Handle("POST /users/me/following/{targetId}", auth(s.followHandler))
	mux.Handle("DELETE /users/me/following/{targetId}", auth(s.unfollowHandler))
	mux.Handle("POST /users/me/scraps/{storeId}", auth(s.scrapHandler))
	mux.Handle("DELETE /users/me/scraps/{storeId}", auth(s.unscrapHandler))

	mux.Handle("POST /stores", auth(s.createStoreHandler))
	mux.Handle("DELETE /stores/{id}", auth(s.deleteStoreHandler))

	mux.Handle("POST /feeds", auth(s.createFeedHandler))
	mux.Handle("PATCH /feeds/{id}", auth(s.updateFeedHandler))
	mux.Handle("DELETE /feeds/{id}", auth(s.deleteFeedHandler))
	mux.Handle("POST /feeds/{id}/likes", auth(s.likeHandler))
	mux.Handle("DELETE /feeds/{id}/likes", auth(s.unlikeHandler))
	mux.Handle("POST /feeds/{id}/reports", auth(s.reportHandler))

	mux.Handle("POST /comments", auth(s.createCommentHandler))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.uploadDir != "" {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))
	}
	return mux
}

// Run starts the HTTP server (HTTPS when a certificate is configured) and
// shuts it down gracefully when ctx is cancelled.
func Run(ctx context.Context, svc *service.Service, cfg *config.Config) {
	s := New(svc, cfg.UploadDir)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		var err error
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			logg.Info("server", "Starting HTTPS server on "+cfg.ServerAddr)
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+cfg.ServerAddr)
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}
