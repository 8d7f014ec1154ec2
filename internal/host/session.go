// Package host drives the kernel from outside: it owns the execution
// counter, delivers stream messages, and stores history. Two front-ends are
// provided, an interactive console and a JSON-lines bridge over stdio.
package host

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ecairns22/seqkernel/internal/kernel"
	"github.com/ecairns22/seqkernel/internal/state"
)

// History is the subset of state.Store the hosts write to.
type History interface {
	StartSession(ctx context.Context, sess *state.Session) error
	RecordExecution(ctx context.Context, e *state.Execution) error
}

// HistoryReader is the subset of state.Store needed to answer history requests.
type HistoryReader interface {
	ListExecutions(ctx context.Context, session string, limit int) ([]*state.Execution, error)
}

// Sender delivers one message to the front-end.
type Sender func(channel, msgType string, content any) error

// Session is the host-side state shared by all front-ends.
type Session struct {
	ID      string
	kernel  *kernel.Kernel
	history History
	logger  *log.Logger
	count   int
	send    Sender
	now     func() time.Time
}

// NewSession creates a session with a fresh id. history may be nil.
func NewSession(k *kernel.Kernel, history History, logger *log.Logger) *Session {
	return &Session{
		ID:      uuid.NewString(),
		kernel:  k,
		history: history,
		logger:  logger,
		now:     time.Now,
	}
}

// Start records the session in the history store.
func (s *Session) Start(ctx context.Context) error {
	if s.history == nil {
		return nil
	}
	banner, err := s.kernel.Banner(ctx)
	if err != nil {
		s.logger.Warn("compiler banner unavailable", "err", err)
	}
	if err := s.history.StartSession(ctx, &state.Session{ID: s.ID, Banner: banner, StartedAt: s.now()}); err != nil {
		return fmt.Errorf("starting history session: %w", err)
	}
	return nil
}

// ExecutionCount implements kernel.Host.
func (s *Session) ExecutionCount() int {
	return s.count
}

// SendResponse implements kernel.Host.
func (s *Session) SendResponse(channel, msgType string, content any) error {
	if s.send == nil {
		return nil
	}
	return s.send(channel, msgType, content)
}

// Execute runs one request through the kernel. The counter is incremented
// beforehand when the request is stored in history.
func (s *Session) Execute(ctx context.Context, req kernel.ExecuteRequest) (*kernel.Outcome, error) {
	if req.StoreHistory {
		s.count++
	}

	outcome, err := s.kernel.Execute(ctx, s, req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("executed", "count", outcome.Reply.ExecutionCount, "status", outcome.Reply.Status)

	if req.StoreHistory && s.history != nil {
		e := &state.Execution{
			Session:        s.ID,
			ExecutionCount: outcome.Reply.ExecutionCount,
			Code:           req.Code,
			Status:         outcome.Reply.Status,
			Stdout:         outcome.Stdout,
			Stderr:         outcome.Stderr,
			ExecutedAt:     s.now(),
		}
		if err := s.history.RecordExecution(ctx, e); err != nil {
			s.logger.Error("recording history", "err", err)
		}
	}
	return outcome, nil
}

var _ kernel.Host = (*Session)(nil)
