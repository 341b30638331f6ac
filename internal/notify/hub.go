// Package notify отправляет смену статуса заказа в websocket-соединения владельца.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/linemk/storefront-orders/internal/domain/models"
)

const sendBuffer = 16

type client struct {
	userID int64
	send   chan []byte
}

// Hub хранит открытые соединения каждого пользователя
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[*client]struct{})}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, exists := set[c]; exists {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// Subscribers возвращает число открытых соединений пользователя
func (h *Hub) Subscribers(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// OrderStatusChanged рассылает изменение во все соединения владельца заказа.
// Медленные клиенты с заполненным буфером отключаются.
func (h *Hub) OrderStatusChanged(_ context.Context, change models.StatusChange) error {
	msg, err := json.Marshal(change)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[change.UserID] {
		select {
		case c.send <- msg:
		default:
			h.removeLocked(c)
		}
	}
	return nil
}

// Close закрывает все соединения
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}
