package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/pkg/logger"
	"live_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const pingInterval = 10 * time.Minute

// ChatWebsocketHandler 將 websocket 連線接上 DeliveryEngine 與 ChatUseCase
type ChatWebsocketHandler struct {
	chatUC ChatUseCase
	engine *DeliveryEngine
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(chatUC ChatUseCase, engine *DeliveryEngine) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		chatUC: chatUC,
		engine: engine,
	}
}

// wsSession one live websocket connection plus its engine registration.
// writeMu serializes the request/response path against the event pump,
// the fiber websocket conn does not allow concurrent writers.
type wsSession struct {
	conn    *websocket.Conn
	sub     *Connection
	userID  domain.UserID
	writeMu sync.Mutex
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	tokenUser := conn.Locals(middlewares.TokenUserID)
	userID, ok := tokenUser.(int64)
	if !ok || !domain.UserID(userID).Valid() {
		logger.Log.Error("websocket connection without valid user id in locals")
		conn.Close()
		return
	}
	logger.Log.Info("websocket connected", zap.Int64("userID", userID))

	session := &wsSession{
		conn:   conn,
		sub:    h.engine.Register(domain.UserID(userID)),
		userID: domain.UserID(userID),
	}

	ticker := time.NewTicker(pingInterval)
	ctxClose, cancel := context.WithCancel(context.Background())

	defer func() {
		ticker.Stop()
		h.engine.Disconnect(session.sub)
		logger.Log.Info("websocket close", zap.Int64("userID", userID))
		conn.Close()
		cancel()
	}()

	//client發出close
	//fiber會自動處理(在read msg 回傳err),故需要SetCloseHandler另外接出
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("WebSocket closed:", conn.RemoteAddr())
		return nil
	})

	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(appData string) error {
		return nil
	})

	//client發出ping
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(appData),
			time.Now().Add(time.Second),
		)
	})

	// 事件推送: engine fan-out -> websocket
	go func() {
		for ev := range session.sub.Events() {
			h.sendEvent(session, ev)
		}
	}()

	// 定期發送 Ping
	go func() {
		for {
			select {
			case <-ticker.C:
				session.writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, []byte("ping"))
				session.writeMu.Unlock()
				if err != nil {
					logger.Log.Errorf("Ping error:", err)
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Infof("Connection closed:", err)
			} else {
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		h.execWebsocketAction(ctx, session, mt, message)
	}
}

func (h *ChatWebsocketHandler) execWebsocketAction(ctx context.Context, session *wsSession, mt int, msg []byte) {
	switch mt {
	case websocket.TextMessage:
		h.textMessageAction(ctx, session, msg)
	default:
		h.sendError(session, "unknown message type")
	}
}

func (h *ChatWebsocketHandler) textMessageAction(ctx context.Context, session *wsSession, msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		h.sendError(session, "invalid request payload")
		return
	}

	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}
	switch req.Action {
	//訂閱對話頻道,授權由 engine 把關
	case string(domain.Subscribe):
		err := h.engine.Subscribe(ctx, session.sub, req.ConversationID)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["conversation_id"] = req.ConversationID
		}

	//退訂對話頻道
	case string(domain.Unsubscribe):
		h.engine.Unsubscribe(session.sub, req.ConversationID)
		resp.Success = true
		resp.Payload["conversation_id"] = req.ConversationID

	//傳送訊息,寫入db後才廣播
	case string(domain.SendMessage):
		m, err := h.chatUC.SendMessage(ctx, session.userID, req.ConversationID, req.Content, session.sub.ID)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["message"] = m
		}

	//將訊息標記已讀
	case string(domain.MarkRead):
		var marked []int64
		var err error
		if len(req.MessageIDs) > 0 {
			marked, err = h.chatUC.MarkAsRead(ctx, session.userID, req.ConversationID, req.MessageIDs)
		} else {
			marked, err = h.chatUC.MarkConversationAsRead(ctx, session.userID, req.ConversationID)
		}
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["marked_ids"] = marked
		}

	//打字中訊號,不落地
	case string(domain.Typing):
		err := h.chatUC.BroadcastTyping(ctx, session.userID, req.ConversationID, req.IsTyping, session.sub.ID)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
		}

	//查詢未讀數
	case string(domain.GetUnread):
		if req.ConversationID > 0 {
			count, err := h.chatUC.UnreadCount(ctx, session.userID, req.ConversationID)
			if err != nil {
				resp.Error = err.Error()
			} else {
				resp.Success = true
				resp.Payload["unread_count"] = count
			}
		} else {
			count, err := h.chatUC.TotalUnreadCount(ctx, session.userID)
			if err != nil {
				resp.Error = err.Error()
			} else {
				resp.Success = true
				resp.Payload["total_unread_count"] = count
			}
		}

	//取最近訊息
	case string(domain.ListLatest):
		msgs, err := h.chatUC.ListLatestMessages(ctx, session.userID, req.ConversationID, req.Limit)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["messages"] = msgs
		}

	default:
		h.sendError(session, "unknown action")
		return
	}

	if resp.Error != "" {
		logger.Log.Error("websocket action failed",
			zap.Int64("userID", int64(session.userID)),
			zap.String("action", req.Action),
			zap.String("err", resp.Error))
	}
	h.sendResponse(session, resp)
}

// sendEvent - engine事件轉成 notify_event 推給前端
func (h *ChatWebsocketHandler) sendEvent(session *wsSession, ev domain.Event) {
	resp := domain.WSResponse{
		Action:  string(domain.NotifyEvent),
		Success: true,
		Payload: map[string]interface{}{
			"event": ev,
		},
	}
	h.sendResponse(session, resp)
}

// sendResponse - 發送 JSON 給前端
func (h *ChatWebsocketHandler) sendResponse(session *wsSession, resp domain.WSResponse) {
	b, _ := json.Marshal(resp)
	session.writeMu.Lock()
	defer session.writeMu.Unlock()
	if err := session.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

func (h *ChatWebsocketHandler) sendError(session *wsSession, errorMsg string) {
	h.sendResponse(session, domain.WSResponse{
		Action:  "error",
		Success: false,
		Payload: map[string]interface{}{
			"error": errorMsg,
		},
	})
}
