package handlers

import (
	"encoding/json"
	"net/http"

	"facecam/internal/dto"
	"facecam/internal/logger"
	hub "facecam/internal/services/websocket"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler registers viewers with the hub and applies their
// start/stop control messages. All writes go through the hub.
func ViewWebsocketHandler(ctrl CaptureController, hubService *hub.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)

		client := hub.NewClient(connection)
		hubService.Register(client)
		defer hubService.Unregister(client)

		for {
			_, msg, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("Viewer %s disconnected normally", client.ID)
				} else {
					logger.Debug("Viewer %s disconnected: %v", client.ID, err)
				}
				return
			}

			var control dto.ControlMessage
			if err := json.Unmarshal(msg, &control); err != nil {
				logger.Warning("Ignoring malformed message from viewer %s: %v", client.ID, err)
				continue
			}

			switch control.Action {
			case dto.ActionStart:
				ctrl.StartCapture(r.Context())
			case dto.ActionStop:
				ctrl.StopCapture(r.Context())
			default:
				logger.Warning("Ignoring unknown action %q from viewer %s", control.Action, client.ID)
			}
		}
	}
}
