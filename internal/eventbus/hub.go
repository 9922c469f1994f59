package eventbus

import (
	"context"
	"sync"
	"time"
)

// Event 对外事件：复习结果、streak 快照、成就解锁
// 由 API/通知层订阅转发，核心只管发布
type Event struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Hub 进程内发布/订阅
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Publish 发布事件，实现 service.EventPublisher
func (h *Hub) Publish(eventType string, data map[string]any) {
	if h == nil {
		return
	}
	evt := Event{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
			// 慢消费者直接丢弃，复习提交路径不能被通知侧阻塞
		}
	}
}

// Subscribe 订阅事件流，ctx 取消时自动退订并关闭通道
func (h *Hub) Subscribe(ctx context.Context, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}
