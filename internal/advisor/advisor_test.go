package advisor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/activity"
	"github.com/siteworks/recruitops/internal/construction"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/store"
	"github.com/siteworks/recruitops/internal/web/cache"
)

var chatNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeGenerator struct {
	systems   []string
	histories [][]Turn
	err       error
	n         int
}

func (f *fakeGenerator) Generate(_ context.Context, system string, history []Turn, message string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.n++
	f.systems = append(f.systems, system)
	f.histories = append(f.histories, append([]Turn(nil), history...))
	return fmt.Sprintf("  answer %d to %q ", f.n, message), nil
}

type staticSource struct{ snap *Snapshot }

func (s staticSource) Snapshot(context.Context) (*Snapshot, error) { return s.snap, nil }

type memTranscripts struct {
	msgs []store.TranscriptMessage
}

func (m *memTranscripts) Append(_ context.Context, msgs ...store.TranscriptMessage) error {
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *memTranscripts) List(_ context.Context, advisor, sessionID string, limit int) ([]store.TranscriptMessage, error) {
	out := make([]store.TranscriptMessage, 0)
	for _, msg := range m.msgs {
		if msg.Advisor == advisor && msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memTranscripts) Clear(_ context.Context, advisor, sessionID string) error {
	kept := m.msgs[:0]
	for _, msg := range m.msgs {
		if msg.Advisor != advisor || msg.SessionID != sessionID {
			kept = append(kept, msg)
		}
	}
	m.msgs = kept
	return nil
}

func testSnapshot() *Snapshot {
	return &Snapshot{
		At:    chatNow,
		Bench: []crm.RoleSupply{{Role: construction.RoleLabourer, Available: 3, Finishing: 1}},
	}
}

func setupService(t *testing.T, opts Options) (*Service, *fakeGenerator, *memTranscripts, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	gen := &fakeGenerator{}
	tr := &memTranscripts{}
	svc := NewService(gen, cache.NewRedis(client, cache.DefaultConfig()), staticSource{testSnapshot()}, tr, nil, opts, zap.NewNop())
	svc.now = func() time.Time { return chatNow }
	return svc, gen, tr, mr
}

func TestChatRejectsBadInput(t *testing.T) {
	svc, gen, _, _ := setupService(t, Options{})

	_, err := svc.Chat(context.Background(), "recruiter", "s1", "hello")
	assert.ErrorIs(t, err, ErrUnknownAdvisor)

	_, err = svc.Chat(context.Background(), Bench, "s1", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, gen.n)
}

func TestChatKeepsHistory(t *testing.T) {
	svc, gen, tr, mr := setupService(t, Options{})
	ctx := context.Background()

	r1, err := svc.Chat(ctx, Bench, "s1", "Who should I call first?")
	require.NoError(t, err)
	assert.Equal(t, `answer 1 to "Who should I call first?"`, r1.Message)
	assert.Equal(t, 2, r1.Turns)
	assert.Contains(t, gen.systems[0], "bench manager")
	assert.Contains(t, gen.systems[0], "- Labourer: 3 available, 1 finishing")
	assert.Empty(t, gen.histories[0])

	r2, err := svc.Chat(ctx, Bench, "s1", "And after that?")
	require.NoError(t, err)
	assert.Equal(t, 4, r2.Turns)
	require.Len(t, gen.histories[1], 2)
	assert.Equal(t, RoleUser, gen.histories[1][0].Role)
	assert.Equal(t, RoleModel, gen.histories[1][1].Role)
	assert.Equal(t, r1.Message, gen.histories[1][1].Text)

	assert.Len(t, tr.msgs, 4)
	assert.Equal(t, 24*time.Hour, mr.TTL("recruitops:advisor:bench:s1"))

	// sessions and advisors are isolated
	_, err = svc.Chat(ctx, Forecast, "s1", "Shortfalls?")
	require.NoError(t, err)
	assert.Empty(t, gen.histories[2])
}

func TestChatTrimsToMaxTurns(t *testing.T) {
	svc, _, _, _ := setupService(t, Options{MaxTurns: 4})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Chat(ctx, BizDev, "s", fmt.Sprintf("q%d", i))
		require.NoError(t, err)
	}
	h, err := svc.History(ctx, BizDev, "s")
	require.NoError(t, err)
	require.Len(t, h, 4)
	assert.Equal(t, "q1", h[0].Text)
	assert.Equal(t, "q2", h[2].Text)
}

func TestHistoryFallsBackToTranscripts(t *testing.T) {
	svc, gen, _, mr := setupService(t, Options{})
	ctx := context.Background()

	_, err := svc.Chat(ctx, Bench, "s1", "first")
	require.NoError(t, err)

	mr.FastForward(25 * time.Hour)
	h, err := svc.History(ctx, Bench, "s1")
	require.NoError(t, err)
	require.Len(t, h, 2, "expired cache reloads from transcripts")

	_, err = svc.Chat(ctx, Bench, "s1", "second")
	require.NoError(t, err)
	assert.Len(t, gen.histories[1], 2)
}

func TestReset(t *testing.T) {
	svc, gen, tr, _ := setupService(t, Options{})
	ctx := context.Background()

	_, err := svc.Chat(ctx, Bench, "s1", "first")
	require.NoError(t, err)
	_, err = svc.Chat(ctx, Bench, "s2", "other session")
	require.NoError(t, err)
	require.NoError(t, svc.Reset(ctx, Bench, "s1"))

	h, err := svc.History(ctx, Bench, "s1")
	require.NoError(t, err)
	assert.Empty(t, h, "transcripts must not bring a reset session back")
	assert.Len(t, tr.msgs, 2, "other sessions keep their transcript")

	_, err = svc.Chat(ctx, Bench, "s1", "fresh start")
	require.NoError(t, err)
	assert.Empty(t, gen.histories[len(gen.histories)-1])
}

func TestResetUnknownAdvisor(t *testing.T) {
	svc, _, _, _ := setupService(t, Options{})

	err := svc.Reset(context.Background(), Name("plumber"), "s1")
	assert.ErrorIs(t, err, ErrUnknownAdvisor)
}

func TestChatGeneratorError(t *testing.T) {
	svc, gen, tr, _ := setupService(t, Options{})
	gen.err = errors.New("quota exceeded")

	_, err := svc.Chat(context.Background(), Forecast, "s1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Empty(t, tr.msgs)
}

func TestChatPublishesActivity(t *testing.T) {
	var got []activity.Event
	gen := &fakeGenerator{}
	svc := NewService(gen, cache.NewMemory(cache.DefaultConfig()), staticSource{testSnapshot()}, nil,
		activity.PublisherFunc(func(e activity.Event) { got = append(got, e) }), Options{}, nil)

	_, err := svc.Chat(context.Background(), BizDev, "s9", "Who to call?")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, activity.AdvisorReplied, got[0].Type)
	assert.Contains(t, got[0].Message, "Business Development Coach")
}
