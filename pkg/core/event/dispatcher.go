package event

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// TopicEngineEvents 引擎事件发布主题
const TopicEngineEvents = "engine.events"

// Handler 进程内事件处理函数
type Handler func(ev *EngineEvent)

// WatermillDispatcher 基于Watermill GoChannel的事件分发器（对外导出）
// 事件序列化为JSON发布到引擎事件主题，同时回调进程内注册的Handler。
type WatermillDispatcher struct {
	pubsub  *gochannel.GoChannel
	enabled bool

	mu       sync.RWMutex
	handlers map[Type][]Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatermillDispatcher 创建事件分发器（对外导出）
func NewWatermillDispatcher(bufferSize int64, debug bool) *WatermillDispatcher {
	logger := watermill.NewStdLogger(debug, false)
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: bufferSize,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	d := &WatermillDispatcher{
		pubsub:   pubsub,
		enabled:  true,
		handlers: make(map[Type][]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}

	// 启动订阅协程：将主题消息分发给进程内Handler
	messages, err := pubsub.Subscribe(ctx, TopicEngineEvents)
	if err != nil {
		log.Printf("订阅引擎事件主题失败: %v", err)
		return d
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.consume(messages)
	}()

	return d
}

// IsEnabled 分发器是否启用
func (d *WatermillDispatcher) IsEnabled() bool {
	return d.enabled
}

// Dispatch 分发事件（fire-and-forget，发布失败只记录日志）
func (d *WatermillDispatcher) Dispatch(ev *EngineEvent) {
	if ev == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("序列化引擎事件失败: type=%s, err=%v", ev.Type, err)
		return
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set("event_type", string(ev.Type))
	if err := d.pubsub.Publish(TopicEngineEvents, msg); err != nil {
		log.Printf("发布引擎事件失败: type=%s, err=%v", ev.Type, err)
	}
}

// Subscribe 注册进程内事件处理函数（对外导出）
// eventType为空字符串时接收全部事件
func (d *WatermillDispatcher) Subscribe(eventType Type, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Close 关闭分发器
func (d *WatermillDispatcher) Close() error {
	d.cancel()
	err := d.pubsub.Close()
	d.wg.Wait()
	return err
}

// consume 消费引擎事件主题并回调Handler
func (d *WatermillDispatcher) consume(messages <-chan *message.Message) {
	for msg := range messages {
		var ev EngineEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			log.Printf("反序列化引擎事件失败: %v", err)
			msg.Ack()
			continue
		}

		d.mu.RLock()
		handlers := append([]Handler{}, d.handlers[ev.Type]...)
		handlers = append(handlers, d.handlers[Type("")]...)
		d.mu.RUnlock()

		for _, h := range handlers {
			h(&ev)
		}
		msg.Ack()
	}
}

// RecordingDispatcher 记录型分发器（测试与审计用，对外导出）
// 同步记录所有分发的事件，便于断言事件顺序。
type RecordingDispatcher struct {
	mu     sync.Mutex
	events []EngineEvent
}

// NewRecordingDispatcher 创建记录型分发器
func NewRecordingDispatcher() *RecordingDispatcher {
	return &RecordingDispatcher{}
}

// IsEnabled 始终启用
func (d *RecordingDispatcher) IsEnabled() bool { return true }

// Dispatch 记录事件
func (d *RecordingDispatcher) Dispatch(ev *EngineEvent) {
	if ev == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, *ev)
}

// Events 获取已记录事件的副本
func (d *RecordingDispatcher) Events() []EngineEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]EngineEvent, len(d.events))
	copy(out, d.events)
	return out
}

// EventsOfType 获取指定类型的已记录事件
func (d *RecordingDispatcher) EventsOfType(t Type) []EngineEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []EngineEvent
	for _, ev := range d.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Reset 清空已记录事件
func (d *RecordingDispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}
