package controller

import "context"

type contextKey int

const (
	connectionIdCtxKey contextKey = iota
	sessionIdCtxKey
)

func (c *controller) getConnectionIdFromCtx(ctx context.Context) string {
	connectionId, ok := ctx.Value(connectionIdCtxKey).(string)
	if !ok {
		return ""
	}

	return connectionId
}

func (c *controller) getSessionIdFromCtx(ctx context.Context) string {
	sessionId, ok := ctx.Value(sessionIdCtxKey).(string)
	if !ok {
		return ""
	}

	return sessionId
}
