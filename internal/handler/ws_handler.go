/*
Package handler provides the HTTP handlers and routing setup for the relay server.

This file contains the HandleWebSocket function, which upgrades the HTTP
connection to WebSocket, assigns the connection its ephemeral client id, and
starts the relay client's message pumps.
*/
package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"warelay/internal/app/relay"
	"warelay/internal/pkg/logx"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		// ClientID is ephemeral: it exists only for the lifetime of this
		// transport connection and is never reused.
		clientID := uuid.NewString()

		client := relay.NewClient(clientID, conn, deps.Sessions)

		go client.WritePump()

		logx.Info("WebSocket connection established", "client_id", clientID)

		client.ReadPump()
	}
}
