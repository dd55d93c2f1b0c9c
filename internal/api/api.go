package api

import (
	"fmt"
	"net/http"
	"time"

	"support-backend/pkg/api"

	"github.com/go-chi/chi/v5"
)

func Health(w http.ResponseWriter, r *http.Request) {
	WriteJsonResponse(w, http.StatusOK, api.HealthResponse{
		Success:   true,
		Message:   "API is running",
		Timestamp: time.Now().UTC(),
	})
}

func RouteNotFound(w http.ResponseWriter, r *http.Request) {
	WriteJsonResponse(w, http.StatusNotFound, api.Response[any]{
		Success: false,
		Error:   &api.ErrorBody{Message: fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path)},
	})
}

// AddRoutes mounts the health check and the chat endpoints on r.
func AddRoutes(r chi.Router, chat *ChatService) {
	r.Get("/health", Health)
	chat.AddRoutes(r)

	r.NotFound(RouteNotFound)
	r.MethodNotAllowed(RouteNotFound)
}
