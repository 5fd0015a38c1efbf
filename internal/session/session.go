package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/study-buddy/internal/models"
	"go.uber.org/zap"
)

// Chatter sends one chat input to the remote chat endpoint and returns the raw reply body.
type Chatter interface {
	Send(ctx context.Context, sessionID, chatInput string) (string, error)
}

// Session is the chat session client. It owns the composer input, the ordered transcript and the
// single-slot in-flight exchange. All methods are safe for concurrent use.
type Session struct {
	id      string
	chatter Chatter
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	input    string
	messages []models.Message
	inflight *Exchange
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used to report failed exchanges.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock overrides the time source used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// New creates a session tagged with id whose replies come from chatter.
func New(id string, chatter Chatter, opts ...Option) *Session {
	s := &Session{
		id:      id,
		chatter: chatter,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("module", "session"), zap.String("sessionID", id))
	return s
}

// ID returns the session identifier every request is tagged with.
func (s *Session) ID() string {
	return s.id
}

// SetInput replaces the composer input.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.input = text
}

// Input returns the current composer input.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.input
}

// Pending reports whether a chat request has been issued and has not settled yet.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inflight != nil
}

// Messages returns a copy of the transcript in append order.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]models.Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

// Snapshot returns a copy of the transcript together with the pending flag, read atomically.
func (s *Session) Snapshot() ([]models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]models.Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs, s.inflight != nil
}

// Submit sends the composer input. It does nothing and returns false when the input is blank or an
// exchange is still pending. Otherwise the user message is appended and the input cleared before the
// request is issued, and the returned Exchange settles once the reply (or an error description) has been
// appended.
//
// The request is detached from ctx cancellation: once issued it always runs to completion.
func (s *Session) Submit(ctx context.Context) (*Exchange, bool) {
	s.mu.Lock()
	ex, ok := s.submitLocked()
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	go s.exchange(context.WithoutCancel(ctx), ex)

	return ex, true
}

// Send sets the composer input to text and submits it in one step, so concurrent callers never issue
// each other's text. While an exchange is pending the input is left untouched.
func (s *Session) Send(ctx context.Context, text string) (*Exchange, bool) {
	s.mu.Lock()
	if s.inflight != nil {
		s.mu.Unlock()
		return nil, false
	}
	s.input = text
	ex, ok := s.submitLocked()
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	go s.exchange(context.WithoutCancel(ctx), ex)

	return ex, true
}

// submitLocked records the user message and claims the in-flight slot. s.mu must be held.
func (s *Session) submitLocked() (*Exchange, bool) {
	if s.inflight != nil || strings.TrimSpace(s.input) == "" {
		return nil, false
	}

	userMsg := models.Message{
		Sender:    models.SenderUser,
		Text:      s.input,
		Timestamp: s.now(),
	}
	s.messages = append(s.messages, userMsg)
	s.input = ""

	ex := &Exchange{
		Request: userMsg,
		done:    make(chan struct{}),
	}
	s.inflight = ex
	return ex, true
}

func (s *Session) exchange(ctx context.Context, ex *Exchange) {
	reply := models.Message{Sender: models.SenderBot}

	body, err := s.chatter.Send(ctx, s.id, ex.Request.Text)
	if err != nil {
		s.logger.Error("Error sending message", zap.String("err", err.Error()))
		reply.Text = fmt.Sprintf("Error: %s. Please try again.", err.Error())
		ex.err = err
	} else {
		reply.Text = body
	}

	s.mu.Lock()
	reply.Timestamp = s.now()
	s.messages = append(s.messages, reply)
	ex.reply = reply
	s.inflight = nil
	s.mu.Unlock()

	close(ex.done)
}

// Exchange is the single in-flight request of a session, from issuance until its reply is recorded.
type Exchange struct {
	// Request is the user message the exchange was issued for.
	Request models.Message

	done  chan struct{}
	reply models.Message
	err   error
}

// Done is closed once the exchange has settled and the session is no longer pending.
func (e *Exchange) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the exchange settles or ctx is done. Giving up on the wait does not cancel the
// request.
func (e *Exchange) Wait(ctx context.Context) (models.Message, error) {
	select {
	case <-e.done:
		return e.reply, nil
	case <-ctx.Done():
		return models.Message{}, ctx.Err()
	}
}

// Reply returns the bot message appended on settlement. It is the zero Message until Done is closed.
func (e *Exchange) Reply() models.Message {
	select {
	case <-e.done:
		return e.reply
	default:
		return models.Message{}
	}
}

// Err returns the failure the reply was synthesized from, or nil if the endpoint answered successfully
// or the exchange has not settled.
func (e *Exchange) Err() error {
	select {
	case <-e.done:
		return e.err
	default:
		return nil
	}
}
