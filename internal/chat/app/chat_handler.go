package app

import (
	"strconv"

	"live_chat_service/internal/chat/domain"
	errprocess "live_chat_service/pkg/err"
	"live_chat_service/pkg/logger"
	"live_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ChatHandler 处理聊天相关的 HTTP 请求
type ChatHandler struct {
	chatUC ChatUseCase
}

// NewChatHandler 创建新的 ChatHandler
func NewChatHandler(chatUC ChatUseCase) *ChatHandler {
	return &ChatHandler{chatUC: chatUC}
}

// statusOf 依錯誤碼轉 HTTP status
func statusOf(err error) int {
	switch errprocess.CodeOf(err) {
	case errprocess.CodeValidation:
		return fiber.StatusBadRequest
	case errprocess.CodeForbidden:
		return fiber.StatusForbidden
	case errprocess.CodeNotFound:
		return fiber.StatusNotFound
	case errprocess.CodeConflict:
		return fiber.StatusConflict
	case errprocess.CodeUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error()})
}

func (h *ChatHandler) actor(c *fiber.Ctx) (domain.UserID, error) {
	userID, ok := c.Locals(middlewares.TokenUserID).(int64)
	if !ok || !domain.UserID(userID).Valid() {
		return 0, errprocess.Forbidden("missing authenticated user")
	}
	return domain.UserID(userID), nil
}

func conversationID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errprocess.Validation("invalid conversation id")
	}
	return id, nil
}

// ListConversations 列出目前使用者的對話
// @Summary 列出對話
// @Description 依最後訊息時間排序,分頁列出目前使用者的所有對話
// @Tags Chat
// @Produce json
// @Param page query int false "頁碼(1起算)"
// @Success 200 {object} string "對話列表"
// @Failure 403 {object} string "未授權"
// @Router /chat/conversations [get]
func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	actor, err := h.actor(c)
	if err != nil {
		return fail(c, err)
	}
	page := c.QueryInt("page", 1)

	convs, total, err := h.chatUC.ListConversations(c.Context(), actor, page)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"conversations": convs, "total": total, "page": page})
}

// CreateConversation 建立或取得與另一位使用者的對話
// @Summary 建立對話
// @Description 與指定使用者建立 1:1 對話,已存在則回傳既有對話
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body string true "對象使用者 id"
// @Success 200 {object} string "對話"
// @Failure 400 {object} string "请求错误"
// @Failure 409 {object} string "不可與自己建立對話"
// @Router /chat/conversations [post]
func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	actor, err := h.actor(c)
	if err != nil {
		return fail(c, err)
	}

	type request struct {
		UserID int64 `json:"user_id"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	conv, err := h.chatUC.GetOrCreateConversation(c.Context(), actor, domain.UserID(req.UserID))
	if err != nil {
		logger.Log.Error("CreateConversation Err",
			zap.Int64("actor", int64(actor)), zap.Int64("other", req.UserID), zap.String("Err :", err.Error()))
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"conversation": conv})
}

// GetConversation 取得單一對話
// @Summary 取得對話
// @Tags Chat
// @Produce json
// @Param id path int true "對話 id"
// @Success 200 {object} string "對話"
// @Failure 403 {object} string "非參與者"
// @Failure 404 {object} string "對話不存在"
// @Router /chat/conversations/{id} [get]
func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	actor, err := h.actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := conversationID(c)
	if err != nil {
		return fail(c, err)
	}

	conv, err := h.chatUC.GetConversation(c.Context(), actor, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"conversation": conv})
}

// DeleteConversation 刪除對話及其所有訊息
// @Summary 刪除對話
// @Tags Chat
// @Produce json
// @Param id path int true "對話 id"
// @Success 200 {object} string "刪除成功"
// @Failure 403 {object} string "非參與者"
// @Failure 404 {object} string "對話不存在"
// @Router /chat/conversations/{id} [delete]
func (h *ChatHandler) DeleteConversation(c *fiber.Ctx) error {
	actor, err := h.actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := conversationID(c)
	if err != nil {
		return fail(c, err)
	}

	if err := h.chatUC.DeleteConversation(c.Context(), actor, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "conversation deleted"})
}

// ListMessages 分頁列出對話訊息,由舊到新
// @Summary 列出訊息
// @Tags Chat
// @Produce json
// @Param id path int true "對話 id"
// @Param page query int false "頁碼(1起算)"
// @Success 200 {object} string "訊息列表"
// @Failure 403 {object} string "非參與者"
// @Router /chat/conversations/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	actor, err := h.actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := conversationID(c)
	if err != nil {
		return fail(c, err)
	}
	page := c.QueryInt("page", 1)

	msgs, total, err := h.chatUC.ListMessages(c.Context(), actor, id, page)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs, "total": total, "page": page})
}

// ListLatestMessages 取對話最近的訊息
// @Summary 取最近訊息
// @Tags Chat
// @Produce json
// @Param id path int true "對話 id"
// @Param limit query int false "取回筆數"
// @Success 200 {object} string "訊息列表"
// @Failure 403 {object} string "非參與者"
// @Router /chat/conversations/{id}/messages/latest [get]
func (h *ChatHandler) ListLatestMessages(c *fiber.Ctx) error {
	actor, err := h.actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := conversationID(c)
	if err != nil {
		return fail(c, err)
	}
	limit := c.QueryInt("limit", 0)

	msgs, err := h.chatUC.ListLatestMessages(c.Context(), actor, id, limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

// SendMessage 在對話內傳送訊息
// @Summary 傳送訊息
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path int true "對話 id"
// @Param request body string true "訊息內容"
// @Success 200 {object} string "訊息"
// @Failure 400 {object} string "内容为空或过长"
// @Failure 403 {object} string "非參與者"
// @Router /chat/conversations/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	actor, err := h.actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := conversationID(c)
	if err != nil {
		return fail(c, err)
	}

	type request struct {
		Content string `json:"content"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	// REST 發送沒有來源連線,不做回音抑制
	msg, err := h.chatUC.SendMessage(c.Context(), actor, id, req.Content, "")
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": msg})
}

// MarkAsRead 將訊息標記已讀
// @Summary 標記已讀
// @Description 指定 message_ids 則只標記這些訊息,否則整個對話標記已讀
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path int true "對話 id"
// @Param request body string false "message_ids"
// @Success 200 {object} string "實際標記的訊息 id"
// @Failure 403 {object} string "非參與者"
// @Router /chat/conversations/{id}/read [post]
func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	actor, err := h.actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := conversationID(c)
	if err != nil {
		return fail(c, err)
	}

	type request struct {
		MessageIDs []int64 `json:"message_ids"`
	}
	var req request
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
		}
	}

	var marked []int64
	if len(req.MessageIDs) > 0 {
		marked, err = h.chatUC.MarkAsRead(c.Context(), actor, id, req.MessageIDs)
	} else {
		marked, err = h.chatUC.MarkConversationAsRead(c.Context(), actor, id)
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"marked_ids": marked})
}

// BroadcastTyping 發送打字中訊號
// @Summary 打字中訊號
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path int true "對話 id"
// @Param request body string true "is_typing"
// @Success 200 {object} string "已廣播"
// @Failure 403 {object} string "非參與者"
// @Router /chat/conversations/{id}/typing [post]
func (h *ChatHandler) BroadcastTyping(c *fiber.Ctx) error {
	actor, err := h.actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := conversationID(c)
	if err != nil {
		return fail(c, err)
	}

	type request struct {
		IsTyping bool `json:"is_typing"`
	}
	var req request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	if err := h.chatUC.BroadcastTyping(c.Context(), actor, id, req.IsTyping, ""); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "typing broadcast"})
}

// UnreadCount 取得單一對話的未讀數
// @Summary 對話未讀數
// @Tags Chat
// @Produce json
// @Param id path int true "對話 id"
// @Success 200 {object} string "未讀數"
// @Failure 403 {object} string "非參與者"
// @Router /chat/conversations/{id}/unread [get]
func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	actor, err := h.actor(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := conversationID(c)
	if err != nil {
		return fail(c, err)
	}

	count, err := h.chatUC.UnreadCount(c.Context(), actor, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

// TotalUnreadCount 取得所有對話的未讀總數
// @Summary 未讀總數
// @Tags Chat
// @Produce json
// @Success 200 {object} string "未讀總數"
// @Failure 403 {object} string "未授權"
// @Router /chat/unread [get]
func (h *ChatHandler) TotalUnreadCount(c *fiber.Ctx) error {
	actor, err := h.actor(c)
	if err != nil {
		return fail(c, err)
	}

	count, err := h.chatUC.TotalUnreadCount(c.Context(), actor)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"total_unread_count": count})
}

// FindUser 取得使用者的顯示資訊
// @Summary 取得使用者
// @Tags Chat
// @Produce json
// @Param id path int true "使用者 id"
// @Success 200 {object} string "使用者"
// @Failure 404 {object} string "使用者不存在"
// @Router /chat/users/{id} [get]
func (h *ChatHandler) FindUser(c *fiber.Ctx) error {
	if _, err := h.actor(c); err != nil {
		return fail(c, err)
	}
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return fail(c, errprocess.Validation("invalid user id"))
	}

	user, err := h.chatUC.FindUser(c.Context(), domain.UserID(id))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}
