package app

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"live_chat_service/internal/chat/domain"
	"live_chat_service/internal/chat/repository"
	errprocess "live_chat_service/pkg/err"
	"live_chat_service/pkg/logger"
)

// Connection one live client connection. Events fanned out to its
// subscribed channels arrive on Events() in publish order; when the
// buffer is full further events are dropped rather than blocking the
// publisher.
type Connection struct {
	ID     string
	UserID domain.UserID

	events    chan domain.Event
	closeOnce sync.Once
}

// Events outbound event stream, closed when the connection is
// disconnected from the engine
func (c *Connection) Events() <-chan domain.Event {
	return c.events
}

func (c *Connection) close() {
	c.closeOnce.Do(func() { close(c.events) })
}

const shardCount = 16

// channelShard one stripe of the subscriber map. Fan-out holds the
// stripe lock for the (non-blocking) sends, which is what gives each
// subscriber FIFO delivery per channel.
type channelShard struct {
	mu   sync.Mutex
	subs map[string]map[string]*Connection // channel -> connection id -> connection
}

// DeliveryEngine maintains live subscriptions per channel and fans out
// events to every subscribed connection. Single node; an optional
// EventTransport mirrors every event onto an external pub/sub under the
// same channel names.
type DeliveryEngine struct {
	authorizer *ChannelAuthorizer
	transport  repository.EventTransport
	prefix     string
	buffer     int

	shards [shardCount]channelShard

	connMu       sync.Mutex
	connChannels map[string]map[string]struct{} // connection id -> subscribed channels

	dropped uint64
}

// NewDeliveryEngine create a DeliveryEngine. transport may be nil,
// buffer <= 0 falls back to 64.
func NewDeliveryEngine(authorizer *ChannelAuthorizer, transport repository.EventTransport, prefix string, buffer int) *DeliveryEngine {
	if buffer <= 0 {
		buffer = 64
	}
	e := &DeliveryEngine{
		authorizer:   authorizer,
		transport:    transport,
		prefix:       prefix,
		buffer:       buffer,
		connChannels: make(map[string]map[string]struct{}),
	}
	for i := range e.shards {
		e.shards[i].subs = make(map[string]map[string]*Connection)
	}
	return e
}

func (e *DeliveryEngine) shard(channel string) *channelShard {
	h := fnv.New32a()
	h.Write([]byte(channel))
	return &e.shards[h.Sum32()%shardCount]
}

// Register attach a new connection for user u. Every connection is
// implicitly subscribed to its own personal channel.
func (e *DeliveryEngine) Register(u domain.UserID) *Connection {
	conn := &Connection{
		ID:     uuid.New().String(),
		UserID: u,
		events: make(chan domain.Event, e.buffer),
	}
	e.attach(domain.UserChannel(e.prefix, u), conn)
	return conn
}

// Subscribe join a conversation channel. The transition to subscribed
// only happens when the authorizer admits the user; otherwise the
// subscription never materializes and a forbidden error is returned.
func (e *DeliveryEngine) Subscribe(ctx context.Context, conn *Connection, conversationID int64) error {
	ok, err := e.authorizer.CanAccessConversationChannel(ctx, conn.UserID, conversationID)
	if err != nil {
		return err
	}
	if !ok {
		return errprocess.Forbidden("not allowed to subscribe to this conversation channel")
	}
	e.attach(domain.ConversationChannel(e.prefix, conversationID), conn)
	return nil
}

// Unsubscribe leave a conversation channel, no-op when not subscribed
func (e *DeliveryEngine) Unsubscribe(conn *Connection, conversationID int64) {
	e.detach(domain.ConversationChannel(e.prefix, conversationID), conn)
}

// Disconnect tear down every subscription of conn and close its event
// stream. Buffered events that were never consumed are discarded.
func (e *DeliveryEngine) Disconnect(conn *Connection) {
	e.connMu.Lock()
	channels := e.connChannels[conn.ID]
	delete(e.connChannels, conn.ID)
	e.connMu.Unlock()

	for channel := range channels {
		s := e.shard(channel)
		s.mu.Lock()
		if subs, ok := s.subs[channel]; ok {
			delete(subs, conn.ID)
			if len(subs) == 0 {
				delete(s.subs, channel)
			}
		}
		s.mu.Unlock()
	}
	conn.close()
}

func (e *DeliveryEngine) attach(channel string, conn *Connection) {
	s := e.shard(channel)
	s.mu.Lock()
	subs, ok := s.subs[channel]
	if !ok {
		subs = make(map[string]*Connection)
		s.subs[channel] = subs
	}
	subs[conn.ID] = conn
	s.mu.Unlock()

	e.connMu.Lock()
	chs, ok := e.connChannels[conn.ID]
	if !ok {
		chs = make(map[string]struct{})
		e.connChannels[conn.ID] = chs
	}
	chs[channel] = struct{}{}
	e.connMu.Unlock()
}

func (e *DeliveryEngine) detach(channel string, conn *Connection) {
	s := e.shard(channel)
	s.mu.Lock()
	if subs, ok := s.subs[channel]; ok {
		delete(subs, conn.ID)
		if len(subs) == 0 {
			delete(s.subs, channel)
		}
	}
	s.mu.Unlock()

	e.connMu.Lock()
	if chs, ok := e.connChannels[conn.ID]; ok {
		delete(chs, channel)
	}
	e.connMu.Unlock()
}

// publish fan one event out on one channel. Delivery per subscriber is
// best-effort and never blocks: a full buffer drops the event for that
// subscriber only and bumps the dropped counter.
func (e *DeliveryEngine) publish(ctx context.Context, channel string, ev domain.Event) {
	s := e.shard(channel)
	s.mu.Lock()
	for connID, conn := range s.subs[channel] {
		if ev.SuppressesEcho() && connID == ev.OriginConn {
			continue
		}
		select {
		case conn.events <- ev:
		default:
			atomic.AddUint64(&e.dropped, 1)
			logger.Log.Warn("subscriber buffer full, event dropped",
				zap.String("channel", channel),
				zap.String("connection", connID),
				zap.String("kind", string(ev.Kind)),
			)
		}
	}
	s.mu.Unlock()

	if e.transport != nil {
		if err := e.transport.Publish(ctx, channel, ev); err != nil {
			logger.Log.Errorf("transport publish failed:", err,
				zap.String("channel", channel))
		}
	}
}

// PublishMessageCreated fan out a freshly persisted message to the
// conversation channel (minus its originator) and notify the other
// participant's personal channel so open conversation lists re-sort.
func (e *DeliveryEngine) PublishMessageCreated(ctx context.Context, conv *domain.Conversation, msg *domain.Message, originConn string) {
	e.publish(ctx, domain.ConversationChannel(e.prefix, conv.ID), domain.Event{
		Kind:           domain.EventMessageCreated,
		ConversationID: conv.ID,
		OriginConn:     originConn,
		Message:        msg,
	})

	at := msg.CreatedAt
	touched := domain.Event{
		Kind:           domain.EventConversationTouched,
		ConversationID: conv.ID,
		LastMessageAt:  &at,
	}
	for _, p := range conv.Participants() {
		if p == msg.SenderID {
			continue
		}
		e.publish(ctx, domain.UserChannel(e.prefix, p), touched)
	}
}

// PublishMessageRead fan out a read receipt. No echo suppression: the
// marker's own other sessions see it too.
func (e *DeliveryEngine) PublishMessageRead(ctx context.Context, conversationID int64, messageIDs []int64, reader domain.UserID, readAt time.Time) {
	e.publish(ctx, domain.ConversationChannel(e.prefix, conversationID), domain.Event{
		Kind:           domain.EventMessageRead,
		ConversationID: conversationID,
		MessageIDs:     messageIDs,
		ReaderID:       reader,
		ReadAt:         &readAt,
	})
}

// PublishTyping fan out a transient typing signal. Repeated is_typing
// announcements carry no state in the engine, they are just re-sent.
func (e *DeliveryEngine) PublishTyping(ctx context.Context, conversationID int64, u domain.UserID, isTyping bool, originConn string) {
	e.publish(ctx, domain.ConversationChannel(e.prefix, conversationID), domain.Event{
		Kind:           domain.EventTypingChanged,
		ConversationID: conversationID,
		OriginConn:     originConn,
		UserID:         u,
		IsTyping:       isTyping,
	})
}

// Dropped number of events discarded because a subscriber buffer was
// full, observability only
func (e *DeliveryEngine) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}
