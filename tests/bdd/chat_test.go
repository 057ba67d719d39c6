package bdd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"live_chat_service/internal/chat/app"
	"live_chat_service/internal/chat/domain"
	errprocess "live_chat_service/pkg/err"
	"live_chat_service/pkg/logger"

	"github.com/cucumber/godog"
)

func TestFeatures(t *testing.T) {
	logger.SetNewNop()

	suite := godog.TestSuite{
		ScenarioInitializer: InitializeChatScenario,
		Options: &godog.Options{
			Paths:  []string{"./featureFiles"}, // 指向 feature 檔相對路徑
			Format: "pretty",
			Output: os.Stdout, // 將結果輸出到終端
		},
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}

// memStore 記憶體版的對話與訊息存放,BDD 場景不需要真的資料庫
type memStore struct {
	mu       sync.Mutex
	convs    map[int64]*domain.Conversation
	msgs     map[int64]*domain.Message
	nextConv int64
	nextMsg  int64
}

func newMemStore() *memStore {
	return &memStore{
		convs:    map[int64]*domain.Conversation{},
		msgs:     map[int64]*domain.Message{},
		nextConv: 1,
		nextMsg:  1,
	}
}

func (s *memStore) GetOrCreate(ctx context.Context, x, y domain.UserID) (*domain.Conversation, error) {
	a, b, err := domain.NormalizePair(x, y)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if c.UserAID == a && c.UserBID == b {
			cp := *c
			return &cp, nil
		}
	}
	c := &domain.Conversation{ID: s.nextConv, UserAID: a, UserBID: b, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.nextConv++
	s.convs[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *memStore) Find(ctx context.Context, x, y domain.UserID) (*domain.Conversation, error) {
	a, b, err := domain.NormalizePair(x, y)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if c.UserAID == a && c.UserBID == b {
			cp := *c
			return &cp, nil
		}
	}
	return nil, errprocess.NotFound("conversation not found")
}

func (s *memStore) FindByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, errprocess.NotFound("conversation not found")
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) ListForUser(ctx context.Context, u domain.UserID, page, perPage int) ([]domain.Conversation, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Conversation
	for _, c := range s.convs {
		if c.IncludesUser(u) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (s *memStore) TouchLastMessage(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return errprocess.NotFound("conversation not found")
	}
	c.LastMessageAt = &at
	return nil
}

func (s *memStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return errprocess.NotFound("conversation not found")
	}
	delete(s.convs, id)
	for mid, m := range s.msgs {
		if m.ConversationID == id {
			delete(s.msgs, mid)
		}
	}
	return nil
}

func (s *memStore) Create(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	stored := *m
	stored.ID = s.nextMsg
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.nextMsg++
	s.msgs[stored.ID] = &stored
	if c, ok := s.convs[stored.ConversationID]; ok {
		c.LastMessageAt = &now
	}
	cp := stored
	return &cp, nil
}

func (s *memStore) List(ctx context.Context, conversationID int64, page, perPage int) ([]domain.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (s *memStore) ListLatest(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error) {
	all, _, _ := s.List(ctx, conversationID, 1, limit)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (s *memStore) MarkRead(ctx context.Context, conversationID int64, ids []int64, reader domain.UserID) ([]int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var marked []int64
	for _, id := range ids {
		m, ok := s.msgs[id]
		if !ok || m.ConversationID != conversationID {
			continue
		}
		if m.SenderID == reader || m.ReadAt != nil {
			continue
		}
		m.ReadAt = &now
		marked = append(marked, id)
	}
	return marked, now, nil
}

func (s *memStore) MarkConversationRead(ctx context.Context, conversationID int64, reader domain.UserID) ([]int64, time.Time, error) {
	s.mu.Lock()
	var ids []int64
	for _, m := range s.msgs {
		if m.ConversationID == conversationID {
			ids = append(ids, m.ID)
		}
	}
	s.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return s.MarkRead(ctx, conversationID, ids, reader)
}

func (s *memStore) UnreadCount(ctx context.Context, conversationID int64, u domain.UserID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.msgs {
		if m.ConversationID == conversationID && m.SenderID != u && m.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *memStore) TotalUnreadCount(ctx context.Context, u domain.UserID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, m := range s.msgs {
		c, ok := s.convs[m.ConversationID]
		if ok && c.IncludesUser(u) && m.SenderID != u && m.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.msgs {
		if m.CreatedAt.Before(cutoff) {
			delete(s.msgs, id)
			n++
		}
	}
	return n, nil
}

// memUsers 身分投影的替身
type memUsers struct{}

func (memUsers) Find(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return &domain.User{ID: id, Name: fmt.Sprintf("user-%d", id)}, nil
}

// chatWorld 單一場景的共用狀態
type chatWorld struct {
	store  *memStore
	engine *app.DeliveryEngine
	uc     app.ChatUseCase

	users   map[string]domain.UserID
	conns   map[string]*app.Connection
	conv    *domain.Conversation
	lastErr error
}

func newChatWorld() *chatWorld {
	store := newMemStore()
	authorizer := app.NewChannelAuthorizer(store)
	engine := app.NewDeliveryEngine(authorizer, nil, "chat", 64)
	uc := app.NewChatUseCase(store, store, memUsers{}, engine, authorizer, app.ChatUseCaseConfig{
		MaxContentLength:     5000,
		MessagesPerPage:      50,
		ConversationsPerPage: 20,
	})
	return &chatWorld{
		store:  store,
		engine: engine,
		uc:     uc,
		users:  map[string]domain.UserID{},
		conns:  map[string]*app.Connection{},
	}
}

func (w *chatWorld) userLoggedIn(name string) error {
	id := domain.UserID(len(w.users) + 1)
	w.users[name] = id
	w.conns[name] = w.engine.Register(id)
	return nil
}

func (w *chatWorld) createConversation(a, b string) error {
	conv, err := w.uc.GetOrCreateConversation(context.Background(), w.users[a], w.users[b])
	w.conv = conv
	w.lastErr = err
	return nil
}

func (w *chatWorld) conversationIncludes(a, b string) error {
	if w.lastErr != nil {
		return w.lastErr
	}
	if !w.conv.IncludesUser(w.users[a]) || !w.conv.IncludesUser(w.users[b]) {
		return fmt.Errorf("conversation %d does not include %s and %s", w.conv.ID, a, b)
	}
	return nil
}

func (w *chatWorld) recreateReturnsSame(a, b string) error {
	conv, err := w.uc.GetOrCreateConversation(context.Background(), w.users[a], w.users[b])
	if err != nil {
		return err
	}
	if conv.ID != w.conv.ID {
		return fmt.Errorf("expected conversation %d, got %d", w.conv.ID, conv.ID)
	}
	return nil
}

func (w *chatWorld) conversationSubscribed(a, b string) error {
	conv, err := w.uc.GetOrCreateConversation(context.Background(), w.users[a], w.users[b])
	if err != nil {
		return err
	}
	w.conv = conv
	for _, name := range []string{a, b} {
		if err := w.engine.Subscribe(context.Background(), w.conns[name], conv.ID); err != nil {
			return err
		}
	}
	return nil
}

func (w *chatWorld) sendsMessage(name, content string) error {
	_, err := w.uc.SendMessage(context.Background(), w.users[name], w.conv.ID, content, w.conns[name].ID)
	return err
}

// nextEvent 等待下一個指定種類的事件,其他種類略過
func (w *chatWorld) nextEvent(name string, kind domain.EventKind) (*domain.Event, error) {
	deadline := time.After(time.Second)
	for {
		select {
		case ev, ok := <-w.conns[name].Events():
			if !ok {
				return nil, fmt.Errorf("event stream closed for %s", name)
			}
			if ev.Kind == kind {
				return &ev, nil
			}
		case <-deadline:
			return nil, fmt.Errorf("timed out waiting for %s event for %s", kind, name)
		}
	}
}

func (w *chatWorld) receivesMessage(name, content string) error {
	ev, err := w.nextEvent(name, domain.EventMessageCreated)
	if err != nil {
		return err
	}
	if ev.Message.Content != content {
		return fmt.Errorf("expected content %q, got %q", content, ev.Message.Content)
	}
	return nil
}

func (w *chatWorld) receivesNothing(name string) error {
	select {
	case ev := <-w.conns[name].Events():
		return fmt.Errorf("unexpected event %s for %s", ev.Kind, name)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (w *chatWorld) marksConversationRead(name string) error {
	_, err := w.uc.MarkConversationAsRead(context.Background(), w.users[name], w.conv.ID)
	return err
}

func (w *chatWorld) receivesReadReceipt(name string) error {
	ev, err := w.nextEvent(name, domain.EventMessageRead)
	if err != nil {
		return err
	}
	if len(ev.MessageIDs) == 0 {
		return fmt.Errorf("read receipt without message ids")
	}
	return nil
}

func (w *chatWorld) triesToSubscribe(name string) error {
	w.lastErr = w.engine.Subscribe(context.Background(), w.conns[name], w.conv.ID)
	return nil
}

func (w *chatWorld) subscriptionRejected() error {
	if errprocess.CodeOf(w.lastErr) != errprocess.CodeForbidden {
		return fmt.Errorf("expected forbidden, got %v", w.lastErr)
	}
	return nil
}

// InitializeChatScenario 註冊 Gherkin 與 Step Definition 的對應
func InitializeChatScenario(ctx *godog.ScenarioContext) {
	w := newChatWorld()
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		w = newChatWorld()
		return c, nil
	})

	ctx.Step(`^"([^"]*)" 已登入並取得連線$`, func(name string) error { return w.userLoggedIn(name) })
	ctx.Step(`^"([^"]*)" 與 "([^"]*)" 建立對話$`, func(a, b string) error { return w.createConversation(a, b) })
	ctx.Step(`^對話參與者應該是 "([^"]*)" 和 "([^"]*)"$`, func(a, b string) error { return w.conversationIncludes(a, b) })
	ctx.Step(`^"([^"]*)" 與 "([^"]*)" 再建立對話會得到同一個對話$`, func(a, b string) error { return w.recreateReturnsSame(a, b) })
	ctx.Step(`^已存在 "([^"]*)" 與 "([^"]*)" 的對話且雙方已訂閱$`, func(a, b string) error { return w.conversationSubscribed(a, b) })
	ctx.Step(`^"([^"]*)" 發送訊息 "([^"]*)"$`, func(name, content string) error { return w.sendsMessage(name, content) })
	ctx.Step(`^"([^"]*)" 應該收到訊息 "([^"]*)"$`, func(name, content string) error { return w.receivesMessage(name, content) })
	ctx.Step(`^"([^"]*)" 不應該收到任何事件$`, func(name string) error { return w.receivesNothing(name) })
	ctx.Step(`^"([^"]*)" 將對話標記為已讀$`, func(name string) error { return w.marksConversationRead(name) })
	ctx.Step(`^"([^"]*)" 應該收到已讀回條$`, func(name string) error { return w.receivesReadReceipt(name) })
	ctx.Step(`^"([^"]*)" 嘗試訂閱該對話$`, func(name string) error { return w.triesToSubscribe(name) })
	ctx.Step(`^訂閱應該被拒絕$`, func() error { return w.subscriptionRejected() })
}
