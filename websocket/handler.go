package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pvparena/typing-arena/internal/auth"
	"github.com/pvparena/typing-arena/internal/registry"
	"github.com/pvparena/typing-arena/internal/wsrouter"
	"github.com/pvparena/typing-arena/websocket/message"
)

// Handler builds the echo.HandlerFunc that upgrades a request to a
// WebSocket. The token is read from a query-string parameter and
// validated directly, since the handshake happens outside any Echo
// middleware chain.
func Handler(reg *registry.Registry, router *wsrouter.Router, jwtSecret, frontendURL string) echo.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if frontendURL == "" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == frontendURL
		},
	}

	return func(c echo.Context) error {
		claims, err := auth.ValidateToken(c.QueryParam("token"), jwtSecret)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authentication failed")
		}

		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			log.Println("websocket upgrade failed:", err)
			return err
		}

		conn := newConn(ws)
		reg.Bind(conn, claims.UserID, claims.Username)
		log.Printf("player connected: %s", claims.UserID)

		go conn.writePump()
		conn.readPump(func(data []byte) {
			var msg message.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Println("error decoding message:", err)
				return
			}
			router.Route(context.Background(), conn, claims.UserID, claims.Username, msg)
		})

		userID, rooms := reg.Unbind(conn)
		router.Disconnect(userID, rooms)
		log.Printf("player disconnected: %s", claims.UserID)

		return nil
	}
}
