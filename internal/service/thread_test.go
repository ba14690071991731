package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Parley/internal/model"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/store"
)

type threadEvent struct {
	gen      uint64
	messages []model.Message
}

// openThread 打开会话, 快照通过通道交回测试协程再 Apply
func openThread(t *testing.T, st store.Store, self, counterpart string) (*ThreadStore, chan threadEvent) {
	t.Helper()
	ts := NewThreadStore(st)
	ts.now = func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) }
	events := make(chan threadEvent, 16)
	_, err := ts.Open(context.Background(), self, counterpart, func(gen uint64, _ string, messages []model.Message) {
		events <- threadEvent{gen: gen, messages: messages}
	})
	require.NoError(t, err)
	t.Cleanup(ts.Close)
	return ts, events
}

// awaitMessages 应用快照直到消息数满足 n
func awaitMessages(t *testing.T, ts *ThreadStore, events chan threadEvent, n int) []model.Message {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if ts.Apply(ev.gen, ev.messages) && len(ev.messages) == n {
				return ev.messages
			}
		case <-deadline:
			t.Fatalf("expected %d messages, have %d", n, len(ts.Messages()))
		}
	}
}

func TestThreadStore_SendWritesMessageAndPreviews(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	ts, events := openThread(t, st, "alice", "bob")
	assert.Equal(t, "alice_bob", ts.Key())

	msg, err := ts.Send(ctx, "  hi bob ")
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "  hi bob ", msg.Body)
	assert.Equal(t, "2024-05-01T08:30:00.000Z", msg.Timestamp)
	assert.False(t, msg.Read)

	got := awaitMessages(t, ts, events, 1)
	assert.Equal(t, *msg, got[0])

	for _, p := range []string{"lastMessages/alice/bob", "lastMessages/bob/alice"} {
		parent, key := store.Split(p)
		snap, err := st.Get(ctx, parent)
		require.NoError(t, err)
		raw, ok := snap.Lookup(key)
		require.True(t, ok, p)
		preview, err := model.DecodeMessage(key, raw)
		require.NoError(t, err)
		assert.Equal(t, *msg, preview)
	}
}

func TestThreadStore_SendRejectsEmptyBody(t *testing.T) {
	st := store.NewMemoryStore()
	ts, _ := openThread(t, st, "alice", "bob")

	_, err := ts.Send(context.Background(), " \t\n")
	require.ErrorIs(t, err, ErrEmptyBody)

	snap, err := st.Get(context.Background(), "messages/alice_bob")
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
}

func TestThreadStore_SendWithoutConversation(t *testing.T) {
	ts := NewThreadStore(store.NewMemoryStore())
	_, err := ts.Send(context.Background(), "hi")
	require.ErrorIs(t, err, ErrNoCounterpart)
}

func TestThreadStore_EditChangesBodyOnly(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	ts, events := openThread(t, st, "alice", "bob")

	msg, err := ts.Send(ctx, "helo")
	require.NoError(t, err)
	awaitMessages(t, ts, events, 1)

	require.NoError(t, ts.Edit(ctx, msg.ID, "hello"))
	require.Eventually(t, func() bool {
		select {
		case ev := <-events:
			ts.Apply(ev.gen, ev.messages)
		default:
		}
		m := ts.Messages()
		return len(m) == 1 && m[0].Body == "hello"
	}, time.Second, 5*time.Millisecond)

	edited := ts.Messages()[0]
	assert.Equal(t, msg.ID, edited.ID)
	assert.Equal(t, msg.SenderID, edited.SenderID)
	assert.Equal(t, msg.Timestamp, edited.Timestamp)
	assert.Equal(t, msg.Read, edited.Read)
}

func TestThreadStore_EditUnknownMessage(t *testing.T) {
	st := store.NewMemoryStore()
	ts, _ := openThread(t, st, "alice", "bob")

	err := ts.Edit(context.Background(), "nope", "hello")
	require.ErrorIs(t, err, ErrMessageNotFound)
	require.ErrorIs(t, ts.Edit(context.Background(), "nope", ""), ErrEmptyBody)

	snap, err := st.Get(context.Background(), "messages/alice_bob")
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
}

func TestThreadStore_DeleteIsIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	ts, events := openThread(t, st, "alice", "bob")

	msg, err := ts.Send(ctx, "oops")
	require.NoError(t, err)
	awaitMessages(t, ts, events, 1)

	require.NoError(t, ts.Delete(ctx, msg.ID))
	require.NoError(t, ts.Delete(ctx, msg.ID))
	awaitMessages(t, ts, events, 0)
}

func TestThreadStore_MarkReadSkipsOwnMessages(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	bob, _ := openThread(t, st, "bob", "alice")
	alice, events := openThread(t, st, "alice", "bob")

	_, err := bob.Send(ctx, "one")
	require.NoError(t, err)
	_, err = bob.Send(ctx, "two")
	require.NoError(t, err)
	_, err = alice.Send(ctx, "mine")
	require.NoError(t, err)
	awaitMessages(t, alice, events, 3)

	n, err := alice.MarkRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snap, err := st.Get(ctx, store.Join(consts.MessagesPath, "alice_bob"))
	require.NoError(t, err)
	for _, m := range DecodeMessages(snap) {
		assert.Equal(t, m.SenderID == "bob", m.Read, m.Body)
	}
}

func TestThreadStore_PeerDeleteBeforeMarkReadOrEditLeavesNoRecord(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	bob, _ := openThread(t, st, "bob", "alice")
	alice, events := openThread(t, st, "alice", "bob")

	first, err := bob.Send(ctx, "one")
	require.NoError(t, err)
	second, err := bob.Send(ctx, "two")
	require.NoError(t, err)
	awaitMessages(t, alice, events, 2)

	// alice 仍持有旧快照时 bob 删掉了两条消息
	require.NoError(t, st.Remove(ctx, store.Join(consts.MessagesPath, "alice_bob", first.ID)))
	require.NoError(t, st.Remove(ctx, store.Join(consts.MessagesPath, "alice_bob", second.ID)))
	require.Len(t, alice.Messages(), 2)

	n, err := alice.MarkRead(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.ErrorIs(t, alice.Edit(ctx, second.ID, "edited"), ErrMessageNotFound)

	snap, err := st.Get(ctx, store.Join(consts.MessagesPath, "alice_bob"))
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
}

func TestThreadStore_ReopenDropsPreviousGeneration(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	ts, events := openThread(t, st, "alice", "bob")
	first := ts.Generation()

	_, err := ts.Open(ctx, "alice", "carol", func(gen uint64, _ string, messages []model.Message) {
		events <- threadEvent{gen: gen, messages: messages}
	})
	require.NoError(t, err)
	assert.Equal(t, "alice_carol", ts.Key())
	assert.False(t, ts.Apply(first, []model.Message{{ID: "stale"}}))
	assert.Empty(t, ts.Messages())
}

func TestDecodeMessages_DropsMalformed(t *testing.T) {
	snap := store.Snapshot{Path: "messages/a_b", Children: []store.Child{
		{Key: "m1", Value: []byte(`{"id":"m1","userId":"a","message":"hi","date":"2024-05-01T08:30:00.000Z","isRead":false}`)},
		{Key: "m2", Value: []byte(`"just a string"`)},
		{Key: "m3", Value: []byte(`{"id":"m3","message":"no sender"}`)},
	}}
	got := DecodeMessages(snap)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
}
