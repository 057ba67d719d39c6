package app

import (
	"context"
	"testing"
	"time"

	"live_chat_service/internal/chat/domain"
	errprocess "live_chat_service/pkg/err"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, convRepo *MockConversationRepository, buffer int) *DeliveryEngine {
	t.Helper()
	return NewDeliveryEngine(NewChannelAuthorizer(convRepo), nil, "chat", buffer)
}

// collectEvent 在限時內等一個事件
func collectEvent(t *testing.T, conn *Connection) domain.Event {
	t.Helper()
	select {
	case ev, ok := <-conn.Events():
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return domain.Event{}
	}
}

func assertNoEvent(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case ev := <-conn.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

// 訂閱需通過授權
func TestDeliveryEngine_SubscribeAuthorized(t *testing.T) {
	ctx := context.Background()
	mockConvRepo := new(MockConversationRepository)
	conv := &domain.Conversation{ID: 1, UserAID: 3, UserBID: 7}
	mockConvRepo.On("FindByID", ctx, int64(1)).Return(conv, nil)

	engine := newTestEngine(t, mockConvRepo, 8)

	participant := engine.Register(3)
	outsider := engine.Register(9)

	assert.NoError(t, engine.Subscribe(ctx, participant, 1))

	err := engine.Subscribe(ctx, outsider, 1)
	assert.Equal(t, errprocess.CodeForbidden, errprocess.CodeOf(err))

	mockConvRepo.AssertExpectations(t)
}

// 不存在的對話不報錯,單純拒絕訂閱
func TestDeliveryEngine_SubscribeMissingConversation(t *testing.T) {
	ctx := context.Background()
	mockConvRepo := new(MockConversationRepository)
	mockConvRepo.On("FindByID", ctx, int64(99)).Return(nil, errprocess.NotFound("conversation not found"))

	engine := newTestEngine(t, mockConvRepo, 8)
	conn := engine.Register(3)

	err := engine.Subscribe(ctx, conn, 99)
	assert.Equal(t, errprocess.CodeForbidden, errprocess.CodeOf(err))
}

// message_created 不回送給來源連線,其他訂閱者收得到
func TestDeliveryEngine_EchoSuppression(t *testing.T) {
	ctx := context.Background()
	mockConvRepo := new(MockConversationRepository)
	conv := &domain.Conversation{ID: 1, UserAID: 3, UserBID: 7}
	mockConvRepo.On("FindByID", ctx, int64(1)).Return(conv, nil)

	engine := newTestEngine(t, mockConvRepo, 8)

	sender := engine.Register(3)
	receiver := engine.Register(7)
	senderOther := engine.Register(3) // 同一使用者的另一個裝置

	require.NoError(t, engine.Subscribe(ctx, sender, 1))
	require.NoError(t, engine.Subscribe(ctx, receiver, 1))
	require.NoError(t, engine.Subscribe(ctx, senderOther, 1))

	msg := &domain.Message{ID: 10, ConversationID: 1, SenderID: 3, Content: "hi", CreatedAt: time.Now()}
	engine.PublishMessageCreated(ctx, conv, msg, sender.ID)

	ev := collectEvent(t, receiver)
	assert.Equal(t, domain.EventMessageCreated, ev.Kind)
	assert.Equal(t, int64(10), ev.Message.ID)

	// 發送者的其他裝置也要收到
	ev = collectEvent(t, senderOther)
	assert.Equal(t, domain.EventMessageCreated, ev.Kind)

	// 接收者的個人頻道另收到 conversation_touched
	ev = collectEvent(t, receiver)
	assert.Equal(t, domain.EventConversationTouched, ev.Kind)
	assert.Equal(t, int64(1), ev.ConversationID)
	assert.NotNil(t, ev.LastMessageAt)

	// 來源連線完全不回送
	assertNoEvent(t, sender)
}

// 已讀回條沒有回音抑制
func TestDeliveryEngine_ReadReceiptReachesOrigin(t *testing.T) {
	ctx := context.Background()
	mockConvRepo := new(MockConversationRepository)
	conv := &domain.Conversation{ID: 1, UserAID: 3, UserBID: 7}
	mockConvRepo.On("FindByID", ctx, int64(1)).Return(conv, nil)

	engine := newTestEngine(t, mockConvRepo, 8)

	reader := engine.Register(7)
	other := engine.Register(3)
	require.NoError(t, engine.Subscribe(ctx, reader, 1))
	require.NoError(t, engine.Subscribe(ctx, other, 1))

	readAt := time.Now()
	engine.PublishMessageRead(ctx, 1, []int64{10, 11}, 7, readAt)

	for _, conn := range []*Connection{reader, other} {
		ev := collectEvent(t, conn)
		assert.Equal(t, domain.EventMessageRead, ev.Kind)
		assert.Equal(t, []int64{10, 11}, ev.MessageIDs)
		assert.Equal(t, domain.UserID(7), ev.ReaderID)
	}
}

// typing 事件抑制來源
func TestDeliveryEngine_Typing(t *testing.T) {
	ctx := context.Background()
	mockConvRepo := new(MockConversationRepository)
	conv := &domain.Conversation{ID: 1, UserAID: 3, UserBID: 7}
	mockConvRepo.On("FindByID", ctx, int64(1)).Return(conv, nil)

	engine := newTestEngine(t, mockConvRepo, 8)

	typer := engine.Register(3)
	watcher := engine.Register(7)
	require.NoError(t, engine.Subscribe(ctx, typer, 1))
	require.NoError(t, engine.Subscribe(ctx, watcher, 1))

	engine.PublishTyping(ctx, 1, 3, true, typer.ID)

	ev := collectEvent(t, watcher)
	assert.Equal(t, domain.EventTypingChanged, ev.Kind)
	assert.Equal(t, domain.UserID(3), ev.UserID)
	assert.True(t, ev.IsTyping)

	assertNoEvent(t, typer)
}

// 單一頻道內事件依發布順序送達
func TestDeliveryEngine_FIFOPerSubscriber(t *testing.T) {
	ctx := context.Background()
	mockConvRepo := new(MockConversationRepository)
	conv := &domain.Conversation{ID: 1, UserAID: 3, UserBID: 7}
	mockConvRepo.On("FindByID", ctx, int64(1)).Return(conv, nil)

	engine := newTestEngine(t, mockConvRepo, 64)

	receiver := engine.Register(7)
	require.NoError(t, engine.Subscribe(ctx, receiver, 1))

	for i := 1; i <= 20; i++ {
		msg := &domain.Message{ID: int64(i), ConversationID: 1, SenderID: 3, CreatedAt: time.Now()}
		engine.PublishMessageCreated(ctx, conv, msg, "")
	}

	var lastID int64
	for i := 1; i <= 20; i++ {
		for {
			ev := collectEvent(t, receiver)
			if ev.Kind != domain.EventMessageCreated {
				continue // 個人頻道的 conversation_touched 穿插其中
			}
			assert.Greater(t, ev.Message.ID, lastID, "out of order delivery")
			lastID = ev.Message.ID
			break
		}
	}
	assert.Equal(t, int64(20), lastID)
}

// 滿載的訂閱者只丟自己的事件,不影響其他人
func TestDeliveryEngine_SlowSubscriberDrops(t *testing.T) {
	ctx := context.Background()
	mockConvRepo := new(MockConversationRepository)
	conv := &domain.Conversation{ID: 1, UserAID: 3, UserBID: 7}
	mockConvRepo.On("FindByID", ctx, int64(1)).Return(conv, nil)

	engine := newTestEngine(t, mockConvRepo, 2)

	slow := engine.Register(7)
	require.NoError(t, engine.Subscribe(ctx, slow, 1))
	// slow 不消費,個人頻道+對話頻道很快塞滿

	for i := 1; i <= 10; i++ {
		msg := &domain.Message{ID: int64(i), ConversationID: 1, SenderID: 3, CreatedAt: time.Now()}
		engine.PublishMessageCreated(ctx, conv, msg, "")
	}

	assert.Greater(t, engine.Dropped(), uint64(0))
}

// 斷線後事件串流關閉,之後的發布不會 panic
func TestDeliveryEngine_Disconnect(t *testing.T) {
	ctx := context.Background()
	mockConvRepo := new(MockConversationRepository)
	conv := &domain.Conversation{ID: 1, UserAID: 3, UserBID: 7}
	mockConvRepo.On("FindByID", ctx, int64(1)).Return(conv, nil)

	engine := newTestEngine(t, mockConvRepo, 8)

	conn := engine.Register(7)
	require.NoError(t, engine.Subscribe(ctx, conn, 1))

	engine.Disconnect(conn)

	_, ok := <-conn.Events()
	assert.False(t, ok, "events channel should be closed")

	msg := &domain.Message{ID: 1, ConversationID: 1, SenderID: 3, CreatedAt: time.Now()}
	assert.NotPanics(t, func() {
		engine.PublishMessageCreated(ctx, conv, msg, "")
	})

	// 重複斷線也安全
	assert.NotPanics(t, func() { engine.Disconnect(conn) })
}

// 退訂後不再收到該對話的事件
func TestDeliveryEngine_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	mockConvRepo := new(MockConversationRepository)
	conv := &domain.Conversation{ID: 1, UserAID: 3, UserBID: 7}
	mockConvRepo.On("FindByID", ctx, int64(1)).Return(conv, nil)

	engine := newTestEngine(t, mockConvRepo, 8)

	conn := engine.Register(3)
	require.NoError(t, engine.Subscribe(ctx, conn, 1))
	engine.Unsubscribe(conn, 1)

	engine.PublishTyping(ctx, 1, 7, true, "")
	assertNoEvent(t, conn)
}

// 事件同步鏡射到外部 transport
func TestDeliveryEngine_TransportMirror(t *testing.T) {
	ctx := context.Background()
	mockConvRepo := new(MockConversationRepository)
	mockTransport := new(MockEventTransport)
	mockTransport.On("Publish", ctx, "chat.1", mock.Anything).Return(nil)

	engine := NewDeliveryEngine(NewChannelAuthorizer(mockConvRepo), mockTransport, "chat", 8)

	engine.PublishTyping(ctx, 1, 3, true, "")

	mockTransport.AssertExpectations(t)
}
