package ws

import (
	"sync"
	"testing"
)

// 广播和断开并发：不允许 map 并发读写，也不允许写已关闭的通道
func TestHub_BroadcastDuringDisconnect(t *testing.T) {
	h := NewHub(nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		c := NewConn(nil, h, "u", "U", nil, nil)
		h.Join("s1", c)

		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				h.broadcast("s1", ServerMessage{Type: "ping"})
			}
		}()
		go func(c *Conn) {
			defer wg.Done()
			h.Leave("s1", c)
			c.closeSend()
		}(c)
	}
	wg.Wait()
}

func TestConn_EnqueueAfterCloseIsDropped(t *testing.T) {
	c := NewConn(nil, nil, "u", "U", nil, nil)
	c.closeSend()
	// 不能 panic
	c.SendMessage_Enqueue(ServerMessage{Type: "ping"})
	// 重复关闭也一样
	c.closeSend()
}

func TestHub_LeaveRemovesEmptyRoom(t *testing.T) {
	h := NewHub(nil)
	c := NewConn(nil, h, "u", "U", nil, nil)
	h.Join("s1", c)
	h.Leave("s1", c)

	h.mu.RLock()
	_, ok := h.rooms["s1"]
	h.mu.RUnlock()
	if ok {
		t.Fatalf("rooms[%q] still present after last conn left", "s1")
	}
}
