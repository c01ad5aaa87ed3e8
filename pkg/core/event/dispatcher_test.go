package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillDispatcher_DeliversToSubscribers(t *testing.T) {
	d := NewWatermillDispatcher(16, false)
	defer d.Close()

	var (
		mu       sync.Mutex
		received []Type
	)
	done := make(chan struct{}, 2)
	// 按类型订阅与全量订阅都应收到事件
	d.Subscribe(ProcessCancelled, func(ev *EngineEvent) {
		mu.Lock()
		received = append(received, ev.Type)
		mu.Unlock()
		done <- struct{}{}
	})
	d.Subscribe(Type(""), func(ev *EngineEvent) {
		done <- struct{}{}
	})

	d.Dispatch(&EngineEvent{
		Type:              ProcessCancelled,
		EntityID:          "pi-1",
		ProcessInstanceID: "pi-1",
		Reason:            "用户取消",
	})

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("等待事件回调超时")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, ProcessCancelled, received[0])
}

func TestWatermillDispatcher_NilEventIgnored(t *testing.T) {
	d := NewWatermillDispatcher(16, false)
	defer d.Close()

	assert.True(t, d.IsEnabled())
	assert.NotPanics(t, func() { d.Dispatch(nil) })
}

func TestRecordingDispatcher(t *testing.T) {
	d := NewRecordingDispatcher()
	assert.True(t, d.IsEnabled())

	d.Dispatch(&EngineEvent{Type: EntityCreated, EntityID: "a"})
	d.Dispatch(&EngineEvent{Type: EntityDeleted, EntityID: "b"})
	d.Dispatch(&EngineEvent{Type: EntityDeleted, EntityID: "c"})

	require.Len(t, d.Events(), 3)
	// 时间戳自动补齐
	assert.False(t, d.Events()[0].Timestamp.IsZero())

	deleted := d.EventsOfType(EntityDeleted)
	require.Len(t, deleted, 2)
	assert.Equal(t, "b", deleted[0].EntityID)
	assert.Equal(t, "c", deleted[1].EntityID)

	d.Reset()
	assert.Empty(t, d.Events())
}

func TestNopDispatcher(t *testing.T) {
	d := NopDispatcher{}
	assert.False(t, d.IsEnabled())
	assert.NotPanics(t, func() { d.Dispatch(&EngineEvent{Type: EntityCreated}) })
}
