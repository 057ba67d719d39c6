package router

import (
	"context"

	"live_chat_service/internal/chat/app"
	"live_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 注册聊天相关的路由
// @title Live Chat Service API
// @version 1.0
// @description API documentation for Live Chat Service
// @host localhost:8084
// @BasePath /
func RegisterRoutes(r *fiber.App, chatHandler *app.ChatHandler, chatWebsocket *app.ChatWebsocketHandler) {
	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "chat service connect success"})
	})

	r.Use(middlewares.JWTMiddleware())

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))

	chatRoutes := r.Group("/chat")
	chatRoutes.Get("/conversations", chatHandler.ListConversations)
	chatRoutes.Post("/conversations", chatHandler.CreateConversation)
	chatRoutes.Get("/conversations/:id", chatHandler.GetConversation)
	chatRoutes.Delete("/conversations/:id", chatHandler.DeleteConversation)
	chatRoutes.Get("/conversations/:id/messages", chatHandler.ListMessages)
	chatRoutes.Post("/conversations/:id/messages", chatHandler.SendMessage)
	chatRoutes.Get("/conversations/:id/messages/latest", chatHandler.ListLatestMessages)
	chatRoutes.Post("/conversations/:id/read", chatHandler.MarkAsRead)
	chatRoutes.Post("/conversations/:id/typing", chatHandler.BroadcastTyping)
	chatRoutes.Get("/conversations/:id/unread", chatHandler.UnreadCount)
	chatRoutes.Get("/unread", chatHandler.TotalUnreadCount)
	chatRoutes.Get("/users/:id", chatHandler.FindUser)
}
