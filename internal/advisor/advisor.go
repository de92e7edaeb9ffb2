// Package advisor runs the AI chat advisors: a bench manager, a workforce
// planner and a business development coach, each primed with a live snapshot
// of the agency's bench and pipeline.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/activity"
	"github.com/siteworks/recruitops/internal/store"
	"github.com/siteworks/recruitops/internal/web/cache"
)

var (
	// ErrUnknownAdvisor is returned for an advisor name that does not exist
	ErrUnknownAdvisor = errors.New("unknown advisor")
	// ErrEmptyMessage is returned when the user message is blank
	ErrEmptyMessage = errors.New("message is empty")
)

// Chat roles
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one message in a conversation
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Generator produces the model's reply to message given a system instruction
// and prior turns
type Generator interface {
	Generate(ctx context.Context, system string, history []Turn, message string) (string, error)
}

// Transcripts persists and reloads conversations
type Transcripts interface {
	Append(ctx context.Context, msgs ...store.TranscriptMessage) error
	List(ctx context.Context, advisor, sessionID string, limit int) ([]store.TranscriptMessage, error)
	Clear(ctx context.Context, advisor, sessionID string) error
}

// Reply is the advisor's answer
type Reply struct {
	Advisor   Name   `json:"advisor"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Turns     int    `json:"turns"`
}

// Options tune conversation memory
type Options struct {
	HistoryTTL time.Duration
	MaxTurns   int
}

// Service answers chat messages
type Service struct {
	gen         Generator
	cache       cache.Cache
	source      SnapshotSource
	transcripts Transcripts
	publisher   activity.Publisher
	opts        Options
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates an advisor service. transcripts and publisher may be nil.
func NewService(gen Generator, c cache.Cache, source SnapshotSource, transcripts Transcripts, publisher activity.Publisher, opts Options, logger *zap.Logger) *Service {
	if opts.HistoryTTL <= 0 {
		opts.HistoryTTL = 24 * time.Hour
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 20
	}
	if publisher == nil {
		publisher = activity.Nop
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gen:         gen,
		cache:       c,
		source:      source,
		transcripts: transcripts,
		publisher:   publisher,
		opts:        opts,
		logger:      logger.Named("advisor"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func historyKey(name Name, sessionID string) string {
	return cache.Key("advisor", string(name), sessionID)
}

// History returns the remembered turns of a session, oldest first. The cache
// is consulted first, then the stored transcript.
func (s *Service) History(ctx context.Context, name Name, sessionID string) ([]Turn, error) {
	if _, ok := Lookup(name); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAdvisor, name)
	}

	var turns []Turn
	err := cache.GetJSON(ctx, s.cache, historyKey(name, sessionID), &turns)
	if err == nil {
		return turns, nil
	}
	if !cache.IsMiss(err) {
		s.logger.Warn("failed to read chat history", zap.String("advisor", string(name)), zap.Error(err))
	}

	if s.transcripts == nil {
		return []Turn{}, nil
	}
	msgs, err := s.transcripts.List(ctx, string(name), sessionID, s.opts.MaxTurns)
	if err != nil {
		return nil, err
	}
	turns = make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{Role: m.Role, Text: m.Content, At: m.CreatedAt})
	}
	return turns, nil
}

// Reset forgets a session: the cached history and the stored transcript
func (s *Service) Reset(ctx context.Context, name Name, sessionID string) error {
	if _, ok := Lookup(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAdvisor, name)
	}
	if err := s.cache.Delete(ctx, historyKey(name, sessionID)); err != nil {
		return err
	}
	if s.transcripts == nil {
		return nil
	}
	return s.transcripts.Clear(ctx, string(name), sessionID)
}

// Chat sends a message to an advisor and returns its reply. The exchange is
// appended to the cached history, trimmed to the most recent turns, and
// written to the transcript store.
func (s *Service) Chat(ctx context.Context, name Name, sessionID, message string) (Reply, error) {
	persona, ok := Lookup(name)
	if !ok {
		return Reply{}, fmt.Errorf("%w: %q", ErrUnknownAdvisor, name)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}

	history, err := s.History(ctx, name, sessionID)
	if err != nil {
		return Reply{}, err
	}

	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to build advisor context: %w", err)
	}
	system := SystemInstruction(persona, snap)

	start := s.now()
	answer, err := s.gen.Generate(ctx, system, history, message)
	if err != nil {
		return Reply{}, fmt.Errorf("advisor %s: %w", name, err)
	}
	answer = strings.TrimSpace(answer)
	end := s.now()

	history = append(history,
		Turn{Role: RoleUser, Text: message, At: start},
		Turn{Role: RoleModel, Text: answer, At: end},
	)
	if len(history) > s.opts.MaxTurns {
		history = history[len(history)-s.opts.MaxTurns:]
	}
	if err := cache.SetJSON(ctx, s.cache, historyKey(name, sessionID), history, s.opts.HistoryTTL); err != nil {
		s.logger.Warn("failed to save chat history", zap.String("advisor", string(name)), zap.Error(err))
	}

	if s.transcripts != nil {
		err := s.transcripts.Append(ctx,
			store.TranscriptMessage{Advisor: string(name), SessionID: sessionID, Role: RoleUser, Content: message, CreatedAt: start},
			store.TranscriptMessage{Advisor: string(name), SessionID: sessionID, Role: RoleModel, Content: answer, CreatedAt: end},
		)
		if err != nil {
			s.logger.Error("failed to store transcript", zap.String("advisor", string(name)), zap.Error(err))
		}
	}

	s.logger.Info("advisor replied",
		zap.String("advisor", string(name)),
		zap.String("session", sessionID),
		zap.Int("turns", len(history)),
		zap.Duration("latency", end.Sub(start)))
	s.publisher.Publish(activity.New(activity.AdvisorReplied,
		fmt.Sprintf("%s advisor answered a question", persona.Title),
		map[string]string{"advisor": string(name), "session_id": sessionID}))

	return Reply{Advisor: name, SessionID: sessionID, Message: answer, Turns: len(history)}, nil
}
