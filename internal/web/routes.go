package web

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, h *SocketHandler) {
	r.Get("/ws/chat", h.ServeHTTP)
}
