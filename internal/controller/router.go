package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (c *controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)

	r.HandleFunc("/ws", c.serveWS)
	r.Get("/api/rooms/{room-id}", c.getRoom)

	if c.staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(c.staticDir)))
	}

	return r
}
