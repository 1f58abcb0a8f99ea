// Package realtime relays quiz events between connected clients grouped in
// rooms.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qconnect/qconnect/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultSendBuffer is the outbound queue length of each client.
const DefaultSendBuffer = 32

var (
	// ErrEvicted is the Reason of a client dropped for a full outbound queue.
	ErrEvicted = errors.New("outbound queue full")
	// ErrHubClosed is the Reason of clients dropped by CloseAll.
	ErrHubClosed = errors.New("hub closed")
)

// EventSink receives every room broadcast. Record must not block.
type EventSink interface {
	Record(ev models.QuizEvent)
}

// Client is one connection's view of the hub. The transport drains Send and
// closes the connection once Done is closed.
type Client struct {
	ID uuid.UUID

	send      chan Outbound
	done      chan struct{}
	closeOnce sync.Once
	reason    error // written before done is closed

	// guarded by Hub.mu
	username string
	room     string
}

func (c *Client) Send() <-chan Outbound { return c.send }

// Done is closed when the client is unregistered or evicted.
func (c *Client) Done() <-chan struct{} { return c.done }

// Reason says why Done was closed: ErrEvicted, ErrHubClosed, or nil after
// Unregister. Only meaningful once Done is closed.
func (c *Client) Reason() error { return c.reason }

func (c *Client) close(reason error) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// Hub tracks room membership and fans events out. Every enqueue happens under
// one lock, so each recipient sees a sender's events in broadcast order.
// Enqueueing never blocks: a client whose queue is full is evicted.
type Hub struct {
	mu       sync.Mutex
	clients  map[uuid.UUID]*Client
	rooms    map[string]map[uuid.UUID]*Client
	closed   bool
	quizRoom string
	sink     EventSink
	logger   *logrus.Logger
	now      func() time.Time
}

// NewHub returns a hub whose quiz events go to quizRoom. sink may be nil.
func NewHub(quizRoom string, sink EventSink, logger *logrus.Logger) *Hub {
	return &Hub{
		clients:  make(map[uuid.UUID]*Client),
		rooms:    make(map[string]map[uuid.UUID]*Client),
		quizRoom: quizRoom,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

// Register adds a connection that has not joined any room yet. After CloseAll
// the returned client is already done.
func (h *Hub) Register(buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	c := &Client{
		ID:   uuid.New(),
		send: make(chan Outbound, buffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.close(ErrHubClosed)
		return c
	}
	h.clients[c.ID] = c
	return c
}

// Unregister drops the client and its membership. Nothing is broadcast.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	h.removeLocked(c, nil)
	h.mu.Unlock()
}

// CloseAll drops every client with ErrHubClosed and refuses new ones. It is
// run when the HTTP server shuts down, since hijacked connections are not
// tracked by the server.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	n := len(h.clients)
	for _, c := range h.clients {
		h.removeLocked(c, ErrHubClosed)
	}
	h.logger.Infof("closed %d realtime clients", n)
}

func (h *Hub) removeLocked(c *Client, reason error) {
	if c.room != "" {
		if members := h.rooms[c.room]; members != nil {
			delete(members, c.ID)
			if len(members) == 0 {
				delete(h.rooms, c.room)
			}
		}
		c.room = ""
	}
	delete(h.clients, c.ID)
	c.close(reason)
}

// RoomSize reports how many clients are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// RoomOf reports the room c has joined, or "".
func (h *Hub) RoomOf(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.room
}

// Join moves c into room, leaving any previous room, and tells the other
// members. An empty room means the quiz room.
func (h *Hub) Join(c *Client, username, room string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("missing username")
	}
	if room = strings.TrimSpace(room); room == "" {
		room = h.quizRoom
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return fmt.Errorf("connection closed")
	}

	if c.room != room {
		if old := h.rooms[c.room]; old != nil {
			delete(old, c.ID)
			if len(old) == 0 {
				delete(h.rooms, c.room)
			}
		}
		members := h.rooms[room]
		if members == nil {
			members = make(map[uuid.UUID]*Client)
			h.rooms[room] = members
		}
		members[c.ID] = c
		c.room = room
	}
	c.username = username

	msg := chatMessage{Msg: username + " has joined the room"}
	h.broadcastLocked(c, room, Outbound{Event: EventMessage, Data: msg}, true)
	h.logger.WithFields(logrus.Fields{"client": c.ID, "username": username, "room": room}).Info("client joined room")
	return nil
}

// StartQuiz announces the quiz to every member of the quiz room. A missing
// payload is sent as an empty object.
func (h *Hub) StartQuiz(c *Client, payload json.RawMessage) {
	if isNull(payload) {
		payload = emptyObject
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(c, h.quizRoom, Outbound{Event: EventQuizStarted, Data: payload}, false)
}

// NextQuestion broadcasts payload to the quiz room when it holds a complete
// questionData object. The returned acknowledgment is also queued for c.
func (h *Hub) NextQuestion(c *Client, payload json.RawMessage, ackID *int64) Outbound {
	h.mu.Lock()
	defer h.mu.Unlock()

	ack := Outbound{Event: EventAck, AckID: ackID}
	if !validQuestion(payload) {
		ack.Data = ackData{Success: false, Message: "Missing question, options or answer"}
		h.deliverLocked(c, ack)
		return ack
	}

	h.broadcastLocked(c, h.quizRoom, Outbound{Event: EventQuestionUpdate, Data: payload}, false)
	ack.Data = ackData{Success: true}
	h.deliverLocked(c, ack)
	return ack
}

// Dispatch decodes one inbound frame from c and routes it.
func (h *Hub) Dispatch(c *Client, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		h.sendError(c, "Invalid JSON format")
		return
	}

	switch in.Event {
	case EventJoin:
		var jd joinData
		if !isNull(in.Data) {
			if err := json.Unmarshal(in.Data, &jd); err != nil {
				h.sendError(c, "Invalid join payload")
				return
			}
		}
		if err := h.Join(c, jd.Username, jd.Room); err != nil {
			h.sendError(c, err.Error())
		}
	case EventStartQuiz:
		h.StartQuiz(c, in.Data)
	case EventNextQuestion:
		h.NextQuestion(c, in.Data, in.ID)
	default:
		h.logger.WithField("client", c.ID).Warnf("unknown realtime event %q", in.Event)
		h.sendError(c, fmt.Sprintf("Unknown event: %s", in.Event))
	}
}

func (h *Hub) sendError(c *Client, msg string) {
	h.mu.Lock()
	h.deliverLocked(c, Outbound{Event: EventError, Data: errorData{Message: msg}})
	h.mu.Unlock()
}

// broadcastLocked enqueues out for every member of room, skipping sender when
// excludeSender is set, and journals it.
func (h *Hub) broadcastLocked(sender *Client, room string, out Outbound, excludeSender bool) {
	for id, member := range h.rooms[room] {
		if excludeSender && id == sender.ID {
			continue
		}
		h.deliverLocked(member, out)
	}
	h.journal(sender, room, out)
}

func (h *Hub) deliverLocked(c *Client, out Outbound) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	select {
	case c.send <- out:
	default:
		h.logger.WithFields(logrus.Fields{"client": c.ID, "event": out.Event}).Warn("outbound queue full; evicting client")
		h.removeLocked(c, ErrEvicted)
	}
}

func (h *Hub) journal(sender *Client, room string, out Outbound) {
	if h.sink == nil {
		return
	}
	payload, err := json.Marshal(out.Data)
	if err != nil {
		h.logger.Warnf("journal %s: %v", out.Event, err)
		return
	}
	h.sink.Record(models.QuizEvent{
		Event:     out.Event,
		Room:      room,
		Sender:    sender.ID.String(),
		Payload:   payload,
		Timestamp: h.now().UnixMilli(),
	})
}
