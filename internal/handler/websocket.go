package handler

import (
	"net/http"

	"github.com/geongi-im/yolo-traffic-monitor/internal/logger"

	"github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ResultHub tracks websocket subscribers of cycle summaries.
type ResultHub interface {
	Register(client *websocket.Conn)
	Unregister(client *websocket.Conn)
}

// ResultsWebsocketHandler registers the viewer with the hub so it receives every cycle summary.
func ResultsWebsocketHandler(hub ResultHub, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Result subscriber left normally")
				} else {
					logger.Warning("Result subscriber left with error: %v", err)
				}
				break
			}
		}
	}
}
