package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nukhba-ai/tutor/backend/internal/model/chat"
	"github.com/nukhba-ai/tutor/backend/internal/model/speech"
	chatsvc "github.com/nukhba-ai/tutor/backend/internal/service/chat"
	speechsvc "github.com/nukhba-ai/tutor/backend/internal/service/speech"
	voicesvc "github.com/nukhba-ai/tutor/backend/internal/service/voice"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// 服务端下发的事件类型，speech 引擎命令由 speechsvc 定义
const (
	TypeSession      = "session"
	TypeState        = "state"
	TypeTranscript   = "transcript"
	TypeMessage      = "message"
	TypeNotification = "notification"
	TypeError        = "error"
)

// WebSocketHandler 语音通道处理器，浏览器端的识别与朗读引擎通过它接入会话
type WebSocketHandler struct {
	hub         *voicesvc.Hub
	connections *speechsvc.ConnectionManager
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *voicesvc.Hub, connections *speechsvc.ConnectionManager, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if connections == nil {
		connections = speechsvc.NewConnectionManager()
	}
	return &WebSocketHandler{
		hub:         hub,
		connections: connections,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/voice/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ConfigMessage 客户端能力与偏好设置，所有字段均可选
type ConfigMessage struct {
	Language         string         `json:"language"`
	Volume           *int           `json:"volume"`
	AutoPlay         *bool          `json:"autoPlay"`
	CaptureSupported *bool          `json:"captureSupported"`
	OutputSupported  *bool          `json:"outputSupported"`
	Voices           []speech.Voice `json:"voices"`
}

type textMessage struct {
	Text string `json:"text"`
}

type replayMessage struct {
	MessageID string `json:"messageId"`
}

type captureResultMessage struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

type captureErrorMessage struct {
	Code string `json:"code"`
}

type playbackMessage struct {
	UtteranceID string `json:"utteranceId"`
	Event       string `json:"event"`
	Detail      string `json:"detail,omitempty"`
}

// client 是一条连接的写端，gorilla 连接不支持并发写
type client struct {
	conn      *websocket.Conn
	sessionID string

	mu     sync.Mutex
	closed bool
}

// Send 实现 speechsvc.Transport
func (c *client) Send(msgType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// Connected 连接关闭后引擎即视为不可用
func (c *client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *client) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (c *client) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.conn.Close()
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	line, err := h.hub.Line(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chatsvc.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("session lookup failed", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	logger := h.logger.With(zap.String("session_id", sessionID))
	c := &client{conn: conn, sessionID: sessionID}
	orch := line.Orchestrator()

	// 先接管引擎再登记连接，旧连接退出时的 Detach 不会影响新连接
	line.Attach(c)
	h.connections.AddConnection(sessionID, conn)
	unsubscribe := orch.Subscribe(func(evt voicesvc.Event) {
		msgType, data := eventPayload(evt)
		if err := c.Send(msgType, data); err != nil {
			logger.Debug("event not delivered", zap.String("type", msgType), zap.Error(err))
		}
	})

	defer func() {
		unsubscribe()
		line.Detach(c)
		h.connections.RemoveConnection(sessionID, conn)
		c.close()
		logger.Info("websocket closed")
	}()

	logger.Info("websocket connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, c)

	h.sendSession(c, orch)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if speechsvc.IsUnexpectedClose(err) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msg.SessionID != "" && msg.SessionID != sessionID {
			h.sendError(c, "session mismatch")
			continue
		}
		h.dispatch(ctx, c, line, msg, logger)
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, c *client, line *voicesvc.Line, msg inboundMessage, logger *zap.Logger) {
	orch := line.Orchestrator()

	switch msg.Type {
	case "start":
		// 失败已通过 notification 事件告知客户端
		if err := orch.StartListening(ctx); err != nil {
			logger.Debug("listening not started", zap.Error(err))
		}
	case "stop":
		orch.StopListening()
	case "cancel":
		orch.Cancel()
	case "reset":
		orch.Reset()
		h.sendSession(c, orch)
	case "text":
		var payload textMessage
		if err := decodeData(msg.Data, &payload); err != nil {
			h.sendError(c, "invalid text message")
			return
		}
		// 读循环需要继续接收 playback 事件，提问放到后台执行
		go func() {
			if _, err := orch.SendText(ctx, payload.Text); err != nil {
				if errors.Is(err, chatsvc.ErrEmptyMessage) || errors.Is(err, voicesvc.ErrTurnSuperseded) {
					return
				}
				h.sendError(c, err.Error())
			}
		}()
	case "replay":
		var payload replayMessage
		if err := decodeData(msg.Data, &payload); err != nil {
			h.sendError(c, "invalid replay message")
			return
		}
		if err := orch.Replay(payload.MessageID); err != nil {
			h.sendError(c, err.Error())
		}
	case "config":
		var cfg ConfigMessage
		if err := decodeData(msg.Data, &cfg); err != nil {
			h.sendError(c, "invalid config message")
			return
		}
		if err := applyConfig(line, cfg); err != nil {
			h.sendError(c, err.Error())
			return
		}
		h.sendSession(c, orch)
	case "capture.started":
		logger.Debug("client recognizer started")
	case "capture.result":
		var payload captureResultMessage
		if err := decodeData(msg.Data, &payload); err != nil {
			h.sendError(c, "invalid capture result")
			return
		}
		line.DeliverCapture(speech.CaptureEvent{Kind: speech.CaptureResult, Text: payload.Text, IsFinal: payload.IsFinal})
	case "capture.error":
		var payload captureErrorMessage
		if err := decodeData(msg.Data, &payload); err != nil {
			h.sendError(c, "invalid capture error")
			return
		}
		line.DeliverCapture(speech.CaptureEvent{Kind: speech.CaptureError, Code: payload.Code})
	case "capture.end":
		line.DeliverCapture(speech.CaptureEvent{Kind: speech.CaptureEnd})
	case "playback":
		var payload playbackMessage
		if err := decodeData(msg.Data, &payload); err != nil {
			h.sendError(c, "invalid playback event")
			return
		}
		kind := speech.PlaybackEventKind(payload.Event)
		switch kind {
		case speech.PlaybackStart, speech.PlaybackEnd, speech.PlaybackError:
		default:
			h.sendError(c, "unknown playback event: "+payload.Event)
			return
		}
		line.DeliverPlayback(speech.PlaybackEvent{UtteranceID: payload.UtteranceID, Kind: kind, Detail: payload.Detail})
	default:
		h.sendError(c, "unsupported message type: "+msg.Type)
	}
}

// applyConfig 应用客户端设置，语言在下一次收听时生效
func applyConfig(line *voicesvc.Line, cfg ConfigMessage) error {
	orch := line.Orchestrator()
	if cfg.Language != "" {
		lang, err := chat.ParseLanguage(cfg.Language)
		if err != nil {
			return err
		}
		if err := orch.SetLanguage(lang); err != nil {
			return err
		}
	}
	if cfg.Volume != nil {
		orch.SetVolume(*cfg.Volume)
	}
	if cfg.AutoPlay != nil {
		orch.SetAutoPlay(*cfg.AutoPlay)
	}
	if cfg.CaptureSupported != nil || cfg.OutputSupported != nil || cfg.Voices != nil {
		line.Configure(boolOr(cfg.CaptureSupported, true), boolOr(cfg.OutputSupported, true), cfg.Voices)
	}
	return nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func decodeData(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// eventPayload 将编排器事件转换为下发消息
func eventPayload(evt voicesvc.Event) (string, interface{}) {
	switch evt.Type {
	case voicesvc.EventTranscript:
		return TypeTranscript, evt.Transcript
	case voicesvc.EventMessage:
		return TypeMessage, evt.Message
	case voicesvc.EventNotification:
		return TypeNotification, evt.Notification
	default:
		return TypeState, map[string]interface{}{"state": evt.State, "turn": evt.Turn}
	}
}

func (h *WebSocketHandler) sendSession(c *client, orch *voicesvc.Orchestrator) {
	status := orch.Snapshot()
	if err := c.Send(TypeSession, map[string]interface{}{
		"state":       status.State,
		"queriesLeft": status.Session.QueriesLeft(),
		"rtl":         status.Session.Language.RTL(),
		"session":     status.Session,
	}); err != nil {
		h.logger.Warn("write session failed", zap.String("session_id", c.sessionID), zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(c *client, message string) {
	if err := c.Send(TypeError, map[string]string{"message": message}); err != nil {
		h.logger.Warn("write error failed", zap.String("session_id", c.sessionID), zap.Error(err))
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}
