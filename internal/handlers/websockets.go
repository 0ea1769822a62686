package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"truckmeasure/internal/logger"
	"truckmeasure/internal/services"
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FeedWebsocketHandler upgrades the connection and registers the viewer on
// the results hub. Completed measurements are pushed until the client
// disconnects.
func FeedWebsocketHandler(manager *services.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		defer connection.Close()

		hub := manager.GetWebsocketService()
		hub.Register(connection)
		defer hub.Unregister(connection)

		logger.Info("Feed viewer connected")

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				logger.Info("Feed viewer disconnected: %v", err)
				break
			}
		}
	}
}
