package wsrouter

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
)

var ErrUnknownMessageType = errors.New("unknown message type")

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error

// ErrorFunc is called when a handler returns an error or an unknown message
// type arrives. It decides what, if anything, gets written back to the client.
type ErrorFunc func(ctx context.Context, conn *websocket.Conn, messageType string, err error)

type WSRouter struct {
	routes  map[string]HandlerFunc
	onError ErrorFunc
}

func New(onError ErrorFunc) *WSRouter {
	return &WSRouter{
		routes:  make(map[string]HandlerFunc),
		onError: onError,
	}
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// ServeConn reads messages from the connection until reading fails and routes
// each one to its registered handler. Handler errors do not end the loop.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		handler, ok := r.routes[msg.Type]
		if !ok {
			if r.onError != nil {
				r.onError(ctx, conn, msg.Type, ErrUnknownMessageType)
			}
			continue
		}

		if err := handler(ctx, conn, msg.Payload); err != nil {
			if r.onError != nil {
				r.onError(ctx, conn, msg.Type, err)
			}
		}
	}
}
