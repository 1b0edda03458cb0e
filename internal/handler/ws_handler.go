/*
Package handler provides the HTTP handler that upgrades realtime connections.

This file contains HandleRealtime, which rate limits and upgrades the connection and hands
it to the gateway, and RoomAuthorizer, which decides who may watch a room.
*/
package handler

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/higgyo/app-dam/internal/app/chat"
	"github.com/higgyo/app-dam/internal/app/feed"
	"github.com/higgyo/app-dam/internal/app/gateway"
	"github.com/higgyo/app-dam/internal/pkg/auth/jwt"
	"github.com/higgyo/app-dam/internal/pkg/errs"
	"github.com/higgyo/app-dam/internal/pkg/limiter"
	"github.com/higgyo/app-dam/internal/pkg/logx"
	"github.com/higgyo/app-dam/internal/pkg/resp"
)

// HandleRealtime upgrades the request and serves it until the client disconnects.
// Authentication happens per channel join, not at upgrade time.
func HandleRealtime(gw *gateway.Gateway, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("Realtime connection rejected: rate limit exceeded")
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		gw.Serve(r.Context(), conn)
	}
}

// RoomAuthorizer lets a valid token holder watch the messages of rooms they belong to.
func RoomAuthorizer(store Store, secretKey string) gateway.Authorizer {
	return func(ctx context.Context, accessToken string, topic feed.Topic) error {
		payload, err := jwt.ParseToken(accessToken, secretKey)
		if err != nil {
			return errs.NewError(errs.ErrUnauthorized)
		}

		expected := chat.RoomTopic(topic.Value)
		if topic.Table != expected.Table || topic.Column != expected.Column {
			return errs.NewError(errs.ErrInvalidParams)
		}

		member, err := store.IsRoomMember(ctx, topic.Value, payload.UserID)
		if err != nil {
			logx.Error(err, "Membership check failed", "room_id", topic.Value)
			return errs.NewError(errs.ErrPersistence)
		}
		if !member {
			return errs.NewError(errs.ErrRoomAccessDenied)
		}
		return nil
	}
}
