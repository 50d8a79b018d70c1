package handlers

import (
	"log"

	"github.com/gin-gonic/gin"

	"trendcast/internal/session"
)

// Events 会话事件 websocket；连接后先推送当前快照
// GET /api/sessions/:id/events
func (h *Handlers) Events(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	initial := &session.Message{
		Type:      "snapshot",
		SessionID: s.ID(),
		Data:      s.Snapshot(),
	}
	if err := h.sessions.Hub().Serve(c.Writer, c.Request, s.ID(), initial); err != nil {
		// Upgrade 失败时已写出 HTTP 错误
		log.Printf("[ws] session %s: upgrade failed: %v", s.ID(), err)
	}
}
