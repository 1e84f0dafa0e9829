package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType WebSocket 消息类型
const (
	MsgTypeInit          = "init"           // 订阅时的会话快照
	MsgTypeSessionUpdate = "session_update" // 会话状态更新
	MsgTypeError         = "error"          // 错误消息
)

// Message WebSocket 消息结构
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client WebSocket 客户端，只订阅一个会话
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
}

type envelope struct {
	sessionID string
	payload   []byte
}

type delivery struct {
	client  *Client
	payload []byte
}

// Hub WebSocket 连接管理中心
type Hub struct {
	logger     *zap.Logger
	clients    map[string]map[*Client]bool
	broadcast  chan envelope
	direct     chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub 创建 Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		direct:     make(chan delivery, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run 运行 Hub，直到 Stop 被调用
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for _, subs := range h.clients {
				for client := range subs {
					close(client.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			subs, ok := h.clients[client.sessionID]
			if !ok {
				subs = make(map[*Client]bool)
				h.clients[client.sessionID] = subs
			}
			subs[client] = true
			h.mu.Unlock()
			h.logger.Info("WebSocket client subscribed", zap.String("session_id", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Info("WebSocket client disconnected", zap.String("session_id", client.sessionID))

		case d := <-h.direct:
			h.mu.Lock()
			if h.clients[d.client.sessionID][d.client] {
				select {
				case d.client.send <- d.payload:
				default:
					h.remove(d.client)
				}
			}
			h.mu.Unlock()

		case env := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[env.sessionID] {
				select {
				case client.send <- env.payload:
				default:
					// 慢消费者，关闭连接
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove 调用方需持有写锁
func (h *Hub) remove(client *Client) {
	subs, ok := h.clients[client.sessionID]
	if !ok || !subs[client] {
		return
	}
	delete(subs, client)
	close(client.send)
	if len(subs) == 0 {
		delete(h.clients, client.sessionID)
	}
}

// Stop 停止 Hub 并关闭所有客户端发送通道
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// PublishSession 向订阅该会话的客户端推送更新
func (h *Hub) PublishSession(sessionID string, data interface{}) {
	h.publish(sessionID, MsgTypeSessionUpdate, data)
}

func (h *Hub) publish(sessionID, msgType string, data interface{}) {
	jsonData, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("Failed to marshal session message", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- envelope{sessionID: sessionID, payload: jsonData}:
	case <-h.done:
	}
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.clients {
		n += len(subs)
	}
	return n
}

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
}

// Register 注册客户端，Hub 已停止时直接关闭发送通道
func (c *Client) Register() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		close(c.send)
	}
}

// Unregister 注销客户端
func (c *Client) Unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// SendInit 推送会话快照，需在 Register 之后调用
// 快照经由 Run 投递，注册后发布的更新不会丢失
func (c *Client) SendInit(data interface{}) error {
	return c.sendDirect(MsgTypeInit, data)
}

// SendError 推送错误消息
func (c *Client) SendError(msg string) error {
	return c.sendDirect(MsgTypeError, msg)
}

func (c *Client) sendDirect(msgType string, data interface{}) error {
	jsonData, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		return err
	}

	select {
	case c.hub.direct <- delivery{client: c, payload: jsonData}:
	case <-c.hub.done:
	}
	return nil
}

// ReadPump 读取消息（保持连接活跃）
func (c *Client) ReadPump() {
	defer func() {
		c.Unregister()
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// WritePump 发送消息
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}
