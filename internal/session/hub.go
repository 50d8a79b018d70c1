package session

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 写消息超时
	writeWait = 10 * time.Second

	// 等待客户端 pong 的时长
	pongWait = 60 * time.Second

	// ping 周期，必须小于 pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 * 1024

	// 每个连接的待发送缓冲，满了直接丢弃旧推送
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message 推送给页面的会话事件
type Message struct {
	Type      string    `json:"type"` // snapshot / stage / error / closed
	SessionID string    `json:"sessionId"`
	Op        string    `json:"op,omitempty"`
	Error     string    `json:"error,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
}

// Hub 按会话分组的 websocket 连接
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{})}
}

// Serve 升级连接并订阅会话事件；initial 非空时作为第一条消息发送
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string, initial *Message) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{sessionID: sessionID, conn: conn, send: make(chan []byte, sendBuffer)}
	if initial != nil {
		if b, err := json.Marshal(initial); err == nil {
			c.send <- b
		}
	}
	h.register(c)

	go c.writePump()
	go c.readPump(h)
	return nil
}

// Publish 向订阅该会话的所有连接推送消息，不阻塞调用方
func (h *Hub) Publish(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[ws] encode %s event failed: %v", msg.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[msg.SessionID] {
		select {
		case c.send <- b:
		default:
			log.Printf("[ws] session %s: client buffer full, dropping %s event", msg.SessionID, msg.Type)
		}
	}
}

// CloseSession 通知并断开会话的所有连接
func (h *Hub) CloseSession(sessionID string) {
	h.Publish(Message{Type: "closed", SessionID: sessionID})

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[sessionID] {
		close(c.send)
	}
	delete(h.clients, sessionID)
}

// Subscribers 当前会话的连接数
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.sessionID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.sessionID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.sessionID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.sessionID)
	}
}

// writePump 负责把消息写给客户端并定期 ping
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理控制帧；页面不通过 websocket 发送指令
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] session %s: %v", c.sessionID, err)
			}
			return
		}
	}
}
