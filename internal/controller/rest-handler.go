package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	roomRepo "github.com/vidroom/server/internal/repository/room"
	"github.com/vidroom/server/pkg/rest"
)

func (c *controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "room-id")
	if roomId == "" {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
		return
	}

	roomState, err := c.roomService.GetRoomState(r.Context(), roomId)
	if err != nil {
		if errors.Is(err, roomRepo.ErrRoomNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
			return
		}

		c.logger.WarnContext(r.Context(), "failed to get room state", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": roomState})
}
