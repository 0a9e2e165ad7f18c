// cmd/push-gateway/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"agrilink/internal/pkg/bootstrap"
	"agrilink/internal/pkg/logger"
	"agrilink/internal/pkg/mq"
	"agrilink/internal/service/marketplace/domain"
	"agrilink/internal/service/marketplace/infrastructure/adapter"
)

const serviceName = "push-gateway"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var (
	nodeID   = serviceName + "-" + uuid.New().String()[:8]
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
			return true
		},
	}
)

// Hub 维护所有活跃的连接，按分区 (ownerType/ownerId) 扇出变更事件。
// 一个分区可以有多个连接（同一管理视图开了多个页签）。
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan domain.ChangeEvent
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan domain.ChangeEvent, 256),
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			if h.clients[client.partition] == nil {
				h.clients[client.partition] = make(map[*Client]struct{})
			}
			h.clients[client.partition][client] = struct{}{}
			logger.Ctx(nil).Info().
				Str("partition", client.partition).
				Str("node", nodeID).
				Msg("client registered")
		case client := <-h.unregister:
			if _, ok := h.clients[client.partition][client]; ok {
				delete(h.clients[client.partition], client)
				close(client.send)
				if len(h.clients[client.partition]) == 0 {
					delete(h.clients, client.partition)
				}
			}
			logger.Ctx(nil).Info().Str("partition", client.partition).Msg("client unregistered")
		case event := <-h.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			for client := range h.clients[event.Owner.String()] {
				select {
				case client.send <- payload:
				default:
					// 发送缓冲满说明连接已经死了，踢掉它
					delete(h.clients[event.Owner.String()], client)
					close(client.send)
				}
			}
		}
	}
}

// Client 是一个WebSocket连接的代表
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	partition string
}

func (c *Client) writePump() error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了发送通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return nil
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return err
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (c *Client) readPump() error {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		// 客户端不上行业务数据，只处理心跳
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	// 1. 从URL参数解析分区
	ownerType, err := domain.ParseOwnerType(r.URL.Query().Get("ownerType"))
	if err != nil {
		http.Error(w, "unknown ownerType", http.StatusBadRequest)
		return
	}
	owner := domain.PartitionKey{OwnerType: ownerType, OwnerID: r.URL.Query().Get("ownerId")}
	if err := owner.Validate(); err != nil {
		http.Error(w, "ownerId is required", http.StatusBadRequest)
		return
	}

	// 2. HTTP升级为WebSocket
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	// 3. 创建客户端实例并注册到Hub
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), partition: owner.String()}
	client.hub.register <- client

	// 4. 读写泵任意一个退出就拆掉整个连接
	go func() {
		g := new(errgroup.Group)
		g.Go(client.writePump)
		g.Go(client.readPump)
		if err := g.Wait(); err != nil {
			logger.Ctx(nil).Debug().Err(err).Str("partition", client.partition).Msg("connection closed")
		}
		client.hub.unregister <- client
		conn.Close()
	}()
}

func main() {
	hub := newHub()
	hubCtx, hubCancel := context.WithCancel(context.Background())
	var consumer *adapter.ChangeConsumerAdapter
	var wg sync.WaitGroup

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8088,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := appCtx.Config

			wg.Add(1)
			go func() {
				defer wg.Done()
				hub.run(hubCtx)
			}()

			// 每个网关节点加入同一个消费组，分担变更主题的分区
			reader := mq.NewReader(cfg.Kafka.Brokers, cfg.Kafka.ChangeTopic, cfg.Kafka.ConsumerGroup)
			consumer = adapter.NewChangeConsumerAdapter(reader, func(event domain.ChangeEvent) {
				hub.broadcast <- event
			})
			consumer.Start(hubCtx)

			appCtx.Mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
				serveWs(hub, w, r)
			})
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		},
		OnShutdown: func(ctx context.Context) {
			if consumer != nil {
				consumer.Stop()
			}
			hubCancel()
			wg.Wait()
		},
	})
}
