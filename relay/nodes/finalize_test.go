package nodes

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

type memStore struct {
	turns []contractx.Turn
}

func (s *memStore) Append(_ context.Context, _ string, turn contractx.Turn) error {
	s.turns = append(s.turns, turn)
	return nil
}

func (s *memStore) Read(_ context.Context, _ string) ([]contractx.Turn, error) {
	return append([]contractx.Turn(nil), s.turns...), nil
}

func (s *memStore) Clear(_ context.Context, _ string) error {
	s.turns = nil
	return nil
}

type stubRegistry struct {
	result string
}

func (r *stubRegistry) DescribeAll() []contractx.Descriptor { return nil }

func (r *stubRegistry) Invoke(_ context.Context, _ string, _ map[string]any) (string, error) {
	return r.result, nil
}

func TestFinalizeAnswerStampsWithPassClock(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 2, 1, 12, 0, 3, 0, time.UTC)
	store := &memStore{}
	state := &PassState{
		SessionID: "s1",
		Resp:      contractx.FinalAnswer("  Hello there.  "),
		Clock:     func() time.Time { return fixed },
	}

	out, err := FinalizeAnswer(context.Background(), state, store)
	if err != nil {
		t.Fatalf("FinalizeAnswer() error = %v", err)
	}
	if out.Reply != "Hello there." {
		t.Fatalf("reply = %q", out.Reply)
	}
	if len(store.turns) != 1 {
		t.Fatalf("store has %d turns, want 1", len(store.turns))
	}
	turn := store.turns[0]
	if turn.Role != contractx.RoleAssistant || turn.Content != "Hello there." {
		t.Fatalf("assistant turn = %+v", turn)
	}
	if !turn.Timestamp.Equal(fixed) {
		t.Fatalf("assistant turn stamped %v, want pass clock %v", turn.Timestamp, fixed)
	}
}

func TestFinalizeAnswerRejectsEmptyReply(t *testing.T) {
	t.Parallel()

	state := &PassState{
		SessionID: "s1",
		Resp:      contractx.FinalAnswer("   "),
	}
	if _, err := FinalizeAnswer(context.Background(), state, &memStore{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestToolHopStampsWithPassClock(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 2, 1, 12, 0, 2, 0, time.UTC)
	store := &memStore{}
	gw := &scriptedGateway{resp: contractx.FinalAnswer("done")}
	state := &PassState{
		SessionID: "s1",
		Resp: contractx.ToolCall(contractx.ToolRequest{
			ID:   "call_1",
			Tool: "get_aws_news",
			Args: map[string]any{"topic": "s3"},
		}),
		Clock: func() time.Time { return fixed },
	}

	out, err := ToolHop(context.Background(), state, store, &stubRegistry{result: "S3 launched X."}, gw, RetryPolicy{MaxAttempts: 1})
	if err != nil {
		t.Fatalf("ToolHop() error = %v", err)
	}
	if out.Resp.Text != "done" {
		t.Fatalf("resp = %+v", out.Resp)
	}

	if len(store.turns) != 1 {
		t.Fatalf("store has %d turns, want the tool turn", len(store.turns))
	}
	turn := store.turns[0]
	if turn.Role != contractx.RoleTool || turn.ToolCallID != "call_1" || turn.ToolName != "get_aws_news" {
		t.Fatalf("tool turn = %+v", turn)
	}
	if !turn.Timestamp.Equal(fixed) {
		t.Fatalf("tool turn stamped %v, want pass clock %v", turn.Timestamp, fixed)
	}
}
