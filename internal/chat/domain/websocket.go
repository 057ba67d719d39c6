package domain

// Action websocket request action
type Action string

const (
	// Subscribe websocket action subscribe to a conversation channel
	Subscribe Action = "subscribe"
	// Unsubscribe websocket action leave a conversation channel
	Unsubscribe Action = "unsubscribe"

	// SendMessage websocket action send_message
	SendMessage Action = "send_message"
	// MarkRead websocket action mark_read
	MarkRead Action = "mark_read"
	// Typing websocket action typing
	Typing Action = "typing"

	// GetUnread websocket action get_unread
	GetUnread Action = "get_unread"
	// ListLatest websocket action list_latest
	ListLatest Action = "list_latest"

	// NotifyEvent server push carrying a fanned-out Event
	NotifyEvent Action = "notify_event"
)

// WSRequest websocket Request
type WSRequest struct {
	Action         string  `json:"action"`
	ConversationID int64   `json:"conversation_id,omitempty"`
	Content        string  `json:"content,omitempty"`
	MessageIDs     []int64 `json:"message_ids,omitempty"`
	IsTyping       bool    `json:"is_typing,omitempty"`
	Limit          int     `json:"limit,omitempty"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
