package notify

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/linemk/storefront-orders/internal/jwt-new/jwtmiddleware"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler обрабатывает GET /ws/orders, пользователь должен быть аутентифицирован JWT middleware
func Handler(log *slog.Logger, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "notify.Handler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", slog.Any("error", err))
			return
		}

		c := &client{userID: userID, send: make(chan []byte, sendBuffer)}
		hub.register(c)
		logger.Debug("websocket subscribed", slog.Int64("userID", userID))

		go writePump(conn, c)
		readPump(conn, hub, c)
	}
}

// readPump только вычитывает служебные фреймы и замечает отключение клиента
func readPump(conn *websocket.Conn, hub *Hub, c *client) {
	defer func() {
		hub.unregister(c)
		_ = conn.Close()
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
