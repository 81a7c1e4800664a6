package server

import (
	"net/http"

	"github.com/haskel/cplxfox/internal/server/middleware"
)

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("GET /v1/models/{task}", s.handleModel)
	mux.HandleFunc("POST /v1/predict", s.handlePredict)
	mux.HandleFunc("GET /v1/predict/{task}", s.handlePredictQuery)

	adminAuth := middleware.AdminAuth(&middleware.AdminAuthConfig{
		Token: s.config.Auth.AdminToken,
		Basic: s.authConfig,
	})
	mux.Handle("POST /v1/reload", adminAuth(http.HandlerFunc(s.handleReload)))

	return mux
}
