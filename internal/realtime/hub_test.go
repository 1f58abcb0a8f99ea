package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/qconnect/qconnect/internal/models"
	"github.com/qconnect/qconnect/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu     sync.Mutex
	events []models.QuizEvent
}

func (m *memorySink) Record(ev models.QuizEvent) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

func newHub() (*Hub, *memorySink) {
	sink := &memorySink{}
	return NewHub("quiz_room", sink, testutil.Logger()), sink
}

// drain returns everything currently queued for c.
func drain(c *Client) []Outbound {
	var out []Outbound
	for {
		select {
		case o := <-c.Send():
			out = append(out, o)
		default:
			return out
		}
	}
}

func dataJSON(t *testing.T, o Outbound) string {
	t.Helper()
	b, err := json.Marshal(o.Data)
	require.NoError(t, err)
	return string(b)
}

func TestJoinNotifiesOtherMembersOnly(t *testing.T) {
	h, sink := newHub()
	ann := h.Register(0)
	bo := h.Register(0)

	require.NoError(t, h.Join(ann, "ann", ""))
	assert.Empty(t, drain(ann))

	require.NoError(t, h.Join(bo, "bo", "quiz_room"))
	assert.Empty(t, drain(bo))

	got := drain(ann)
	require.Len(t, got, 1)
	assert.Equal(t, EventMessage, got[0].Event)
	assert.JSONEq(t, `{"msg":"bo has joined the room"}`, dataJSON(t, got[0]))

	assert.Equal(t, 2, h.RoomSize("quiz_room"))
	require.Len(t, sink.events, 2)
	assert.Equal(t, "message", sink.events[1].Event)
	assert.Equal(t, bo.ID.String(), sink.events[1].Sender)
}

func TestRejoinMovesMembership(t *testing.T) {
	h, _ := newHub()
	ann := h.Register(0)

	require.NoError(t, h.Join(ann, "ann", "lobby"))
	require.NoError(t, h.Join(ann, "ann", "lobby"))
	assert.Equal(t, 1, h.RoomSize("lobby"))

	require.NoError(t, h.Join(ann, "ann", "quiz_room"))
	assert.Equal(t, 0, h.RoomSize("lobby"))
	assert.Equal(t, 1, h.RoomSize("quiz_room"))
	assert.Equal(t, "quiz_room", h.RoomOf(ann))
}

func TestJoinRequiresUsername(t *testing.T) {
	h, _ := newHub()
	c := h.Register(0)

	assert.Error(t, h.Join(c, "  ", ""))
	assert.Equal(t, 0, h.RoomSize("quiz_room"))
}

func TestStartQuizReachesEveryQuizRoomMember(t *testing.T) {
	h, _ := newHub()
	ann := h.Register(0)
	bo := h.Register(0)
	outsider := h.Register(0)
	require.NoError(t, h.Join(ann, "ann", ""))
	require.NoError(t, h.Join(bo, "bo", ""))
	require.NoError(t, h.Join(outsider, "cy", "elsewhere"))
	drain(ann)

	// the sender need not have joined
	anon := h.Register(0)
	h.StartQuiz(anon, nil)

	for _, c := range []*Client{ann, bo} {
		got := drain(c)
		require.Len(t, got, 1)
		assert.Equal(t, EventQuizStarted, got[0].Event)
		assert.JSONEq(t, `{}`, dataJSON(t, got[0]))
	}
	assert.Empty(t, drain(outsider))
	assert.Empty(t, drain(anon))
}

func TestStartQuizForwardsPayload(t *testing.T) {
	h, _ := newHub()
	ann := h.Register(0)
	require.NoError(t, h.Join(ann, "ann", ""))

	h.StartQuiz(ann, json.RawMessage(`{"quiz":"capitals"}`))

	got := drain(ann)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"quiz":"capitals"}`, dataJSON(t, got[0]))
}

func TestNextQuestionBroadcastsAndAcks(t *testing.T) {
	h, sink := newHub()
	host := h.Register(0)
	player := h.Register(0)
	require.NoError(t, h.Join(player, "ann", ""))

	id := int64(7)
	payload := json.RawMessage(`{"questionData":{"question":"2+2?","options":["3","4","5","6"],"answer":"4"},"index":1}`)
	ack := h.NextQuestion(host, payload, &id)

	assert.Equal(t, EventAck, ack.Event)
	assert.Equal(t, &id, ack.AckID)
	assert.JSONEq(t, `{"success":true}`, dataJSON(t, ack))

	got := drain(player)
	require.Len(t, got, 1)
	assert.Equal(t, EventQuestionUpdate, got[0].Event)
	assert.JSONEq(t, string(payload), dataJSON(t, got[0]))

	hostFrames := drain(host)
	require.Len(t, hostFrames, 1)
	assert.Equal(t, EventAck, hostFrames[0].Event)
	assert.Equal(t, "question_update", sink.events[len(sink.events)-1].Event)
}

func TestNextQuestionRejectsIncompletePayload(t *testing.T) {
	h, sink := newHub()
	host := h.Register(0)
	player := h.Register(0)
	require.NoError(t, h.Join(player, "ann", ""))
	drain(player)
	journaled := len(sink.events)

	for _, p := range []string{
		``,
		`{}`,
		`{"questionData":null}`,
		`{"questionData":"x"}`,
		`{"questionData":{"question":"q","options":["a"]}}`,
		`{"questionData":{"question":"q","answer":"a"}}`,
		`{"questionData":{"options":["a"],"answer":"a"}}`,
		`{"questionData":{"question":null,"options":["a"],"answer":"a"}}`,
	} {
		ack := h.NextQuestion(host, json.RawMessage(p), nil)
		assert.JSONEq(t, `{"success":false,"message":"Missing question, options or answer"}`, dataJSON(t, ack), p)
	}

	assert.Empty(t, drain(player))
	assert.Len(t, drain(host), 8)
	assert.Len(t, sink.events, journaled)
}

func TestDispatchErrors(t *testing.T) {
	h, _ := newHub()
	c := h.Register(0)

	h.Dispatch(c, []byte(`{not json`))
	h.Dispatch(c, []byte(`{"event":"dance"}`))
	h.Dispatch(c, []byte(`{"event":"join","data":{}}`))

	got := drain(c)
	require.Len(t, got, 3)
	for _, o := range got {
		assert.Equal(t, EventError, o.Event)
	}
	assert.JSONEq(t, `{"message":"Invalid JSON format"}`, dataJSON(t, got[0]))
	assert.JSONEq(t, `{"message":"Unknown event: dance"}`, dataJSON(t, got[1]))
}

func TestDispatchRoutesEvents(t *testing.T) {
	h, _ := newHub()
	ann := h.Register(0)
	bo := h.Register(0)

	h.Dispatch(ann, []byte(`{"event":"join","data":{"username":"ann"}}`))
	h.Dispatch(bo, []byte(`{"event":"join","data":{"username":"bo","room":"quiz_room"}}`))
	h.Dispatch(bo, []byte(`{"event":"start_quiz"}`))
	h.Dispatch(bo, []byte(`{"event":"next_question","id":3,"data":{"questionData":{"question":"q","options":[1,2],"answer":1}}}`))

	var events []string
	for _, o := range drain(ann) {
		events = append(events, o.Event)
	}
	assert.Equal(t, []string{EventMessage, EventQuizStarted, EventQuestionUpdate}, events)

	boFrames := drain(bo)
	require.Len(t, boFrames, 3)
	assert.Equal(t, EventAck, boFrames[2].Event)
	require.NotNil(t, boFrames[2].AckID)
	assert.Equal(t, int64(3), *boFrames[2].AckID)
}

func TestUnregisterRemovesMembershipSilently(t *testing.T) {
	h, sink := newHub()
	ann := h.Register(0)
	bo := h.Register(0)
	require.NoError(t, h.Join(ann, "ann", ""))
	require.NoError(t, h.Join(bo, "bo", ""))
	drain(ann)
	journaled := len(sink.events)

	h.Unregister(bo)

	assert.Equal(t, 1, h.RoomSize("quiz_room"))
	assert.Empty(t, drain(ann))
	assert.Len(t, sink.events, journaled)
	select {
	case <-bo.Done():
	default:
		t.Fatal("unregistered client not marked done")
	}
	assert.NoError(t, bo.Reason())

	// operations on a gone client are no-ops
	assert.Error(t, h.Join(bo, "bo", ""))
	h.StartQuiz(bo, nil)
	assert.Empty(t, drain(bo))
}

func TestSlowClientIsEvictedWithoutBlockingOthers(t *testing.T) {
	h, _ := newHub()
	slow := h.Register(2)
	fast := h.Register(64)
	require.NoError(t, h.Join(slow, "slow", ""))
	require.NoError(t, h.Join(fast, "fast", ""))

	for i := 0; i < 10; i++ {
		h.StartQuiz(fast, json.RawMessage(`{"n":`+string(rune('0'+i))+`}`))
	}

	select {
	case <-slow.Done():
	default:
		t.Fatal("slow client was not evicted")
	}
	assert.ErrorIs(t, slow.Reason(), ErrEvicted)
	assert.Equal(t, 1, h.RoomSize("quiz_room"))

	got := drain(fast)
	require.Len(t, got, 10)
	for i, o := range got {
		assert.JSONEq(t, `{"n":`+string(rune('0'+i))+`}`, dataJSON(t, o))
	}
}

func TestCloseAllEndsEveryClient(t *testing.T) {
	h, _ := newHub()
	ann := h.Register(0)
	bo := h.Register(0)
	lurker := h.Register(0)
	require.NoError(t, h.Join(ann, "ann", ""))
	require.NoError(t, h.Join(bo, "bo", "side"))

	h.CloseAll()

	for _, c := range []*Client{ann, bo, lurker} {
		select {
		case <-c.Done():
		default:
			t.Fatalf("client %s still open after CloseAll", c.ID)
		}
		assert.ErrorIs(t, c.Reason(), ErrHubClosed)
	}
	assert.Zero(t, h.RoomSize("quiz_room"))
	assert.Zero(t, h.RoomSize("side"))

	late := h.Register(0)
	select {
	case <-late.Done():
	default:
		t.Fatal("client registered after CloseAll is not done")
	}
	assert.ErrorIs(t, late.Reason(), ErrHubClosed)
	assert.Error(t, h.Join(late, "late", ""))

	// a second call is harmless
	h.CloseAll()
}

func TestFIFOPerSender(t *testing.T) {
	h, _ := newHub()
	recv := h.Register(1000)
	require.NoError(t, h.Join(recv, "recv", ""))

	senders := make([]*Client, 4)
	for i := range senders {
		senders[i] = h.Register(1000)
	}

	const perSender = 100
	var wg sync.WaitGroup
	for s, c := range senders {
		wg.Add(1)
		go func(s int, c *Client) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				b, _ := json.Marshal(map[string]int{"s": s, "i": i})
				h.StartQuiz(c, b)
			}
		}(s, c)
	}
	wg.Wait()

	next := make([]int, len(senders))
	for _, o := range drain(recv) {
		var v struct{ S, I int }
		require.NoError(t, json.Unmarshal(o.Data.(json.RawMessage), &v))
		assert.Equal(t, next[v.S], v.I, "sender %d out of order", v.S)
		next[v.S] = v.I + 1
	}
	for s := range senders {
		assert.Equal(t, perSender, next[s])
	}
}
