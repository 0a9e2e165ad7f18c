package notify

import (
	"sync"

	"agrilink/internal/service/marketplace/domain"
)

// subscriberBuffer 是单个订阅通道的缓冲大小。
// 通道满时事件被丢弃而不是阻塞提交路径，订阅方以最新投影兜底。
const subscriberBuffer = 64

// Hub 是进程内的变更事件集线器，同时实现 domain.ChangePublisher
// 和 domain.ChangeStream。存储在提交成功后把事件发布进来，
// Hub 统一分配单调递增的 Seq 并按分区扇出给订阅者。
// 结构参考推送网关的 Hub/Client 模型，但这里只做单进程扇出。
type Hub struct {
	mu          sync.Mutex
	seq         int64
	subscribers map[string]map[int]chan domain.ChangeEvent
	nextSubID   int

	// forward 是可选的下游发布方（比如 Kafka 适配器），
	// 用于把事件送出本进程。
	forward domain.ChangePublisher
}

// NewHub 创建一个集线器。forward 可以为 nil。
func NewHub(forward domain.ChangePublisher) *Hub {
	return &Hub{
		subscribers: make(map[string]map[int]chan domain.ChangeEvent),
		forward:     forward,
	}
}

var _ domain.ChangePublisher = (*Hub)(nil)
var _ domain.ChangeStream = (*Hub)(nil)

// Publish 给事件分配序号并扇出。慢订阅者被跳过，不会阻塞调用方。
func (h *Hub) Publish(event domain.ChangeEvent) error {
	h.mu.Lock()
	h.seq++
	event.Seq = h.seq
	var targets []chan domain.ChangeEvent
	for _, ch := range h.subscribers[event.Owner.String()] {
		targets = append(targets, ch)
	}
	for _, ch := range h.subscribers[allPartitionsKey] {
		targets = append(targets, ch)
	}
	h.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			// 订阅方消费太慢，丢弃该事件
		}
	}

	if h.forward != nil {
		return h.forward.Publish(event)
	}
	return nil
}

// allPartitionsKey 是跨分区订阅在订阅表里占用的桶。
const allPartitionsKey = "*"

// Subscribe 注册一个分区作用域的订阅，返回有序事件通道和取消函数。
// 取消后通道被关闭，重复取消是安全的。
func (h *Hub) Subscribe(owner domain.PartitionKey) (<-chan domain.ChangeEvent, func()) {
	return h.subscribe(owner.String())
}

// SubscribeAll 注册一个跨分区订阅，接收所有分区的变更事件。
// 读缓存失效这类横切消费方使用它。
func (h *Hub) SubscribeAll() (<-chan domain.ChangeEvent, func()) {
	return h.subscribe(allPartitionsKey)
}

func (h *Hub) subscribe(key string) (<-chan domain.ChangeEvent, func()) {
	ch := make(chan domain.ChangeEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subscribers[key] == nil {
		h.subscribers[key] = make(map[int]chan domain.ChangeEvent)
	}
	id := h.nextSubID
	h.nextSubID++
	h.subscribers[key][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers[key], id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
