package session

import (
	"context"
	"log"
	"time"

	"trendcast/internal/pipeline"
	"trendcast/internal/store"
)

// journalTimeout 写运行记录的超时
const journalTimeout = 5 * time.Second

// Observe 实现 pipeline.Observer：记录日志、写运行记录并推送快照
func (m *Manager) Observe(e pipeline.Event) {
	run := store.RunLog{
		SessionID: e.SessionID,
		DatasetID: e.DatasetID,
		Stage:     e.Op,
		Status:    store.RunSucceeded,
		Duration:  e.Duration,
	}
	msg := Message{
		Type:      "stage",
		SessionID: e.SessionID,
		Op:        e.Op,
		Data:      e.Snapshot,
	}

	if e.Err != nil {
		run.Status = store.RunFailed
		run.ErrorKind = string(pipeline.KindOf(e.Err))
		run.Message = pipeline.MessageOf(e.Err)
		msg.Type = "error"
		msg.Error = run.Message
		log.Printf("[session] %s %s failed after %s: %v", e.SessionID, e.Op, e.Duration.Round(time.Millisecond), e.Err)
	} else {
		log.Printf("[session] %s %s -> %s (%s)", e.SessionID, e.Op, e.Snapshot.Stage, e.Duration.Round(time.Millisecond))
	}

	if m.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		if _, err := m.journal.CreateRun(ctx, run); err != nil {
			log.Printf("[session] %s: write run log failed: %v", e.SessionID, err)
		}
		cancel()
	}

	m.hub.Publish(msg)
}
