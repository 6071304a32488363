package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"talk-n-share/internal/livesync"
	"talk-n-share/internal/match"
	"talk-n-share/internal/middleware"
	"talk-n-share/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Frame types sent to the client.
const (
	FrameSession       = "session"
	FrameMessage       = "message"
	FrameTyping        = "typing"
	FrameMatchFound    = "match_found"
	FrameDirectSession = "direct_session"
	FrameResync        = "resync"
	FrameError         = "error"
)

// Frame types the client may send.
const (
	FrameJoinSession  = "join_session"
	FrameLeaveSession = "leave_session"
	FrameStartTyping  = "typing"
	FrameStopTyping   = "stop_typing"
)

// SessionService renders sessions for one viewer and relays typing.
type SessionService interface {
	Session(ctx context.Context, sessionID, viewerID string) (*match.SessionView, error)
	Typing(ctx context.Context, sessionID, userID string, typing bool) error
	ViewFor(ctx context.Context, viewerID string, session *models.MatchSession) (*match.SessionView, error)
	ViewMessage(ctx context.Context, viewerID string, session *models.MatchSession, msg *models.Message) match.MessageView
}

type Subscriber interface {
	Subscribe(topic string) *livesync.Subscription
}

type PresenceTracker interface {
	Touch(ctx context.Context, userID string) error
}

type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	broker   Subscriber
	svc      SessionService
	presence PresenceTracker
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

// Client is one WebSocket connection. It always follows its owner's user
// topic and any session topics joined over the socket.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Frame
	userID string

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	closed chan struct{}

	mu        sync.Mutex
	subs      map[string]*livesync.Subscription
	reconcile *livesync.Reconciler

	// order serialises the version check with the enqueue so session
	// frames leave in the order they were accepted
	order sync.Mutex
}

// Frame is the server to client envelope.
type Frame struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id,omitempty"`
	Topic     string             `json:"topic,omitempty"`
	Session   *match.SessionView `json:"session,omitempty"`
	Message   *match.MessageView `json:"message,omitempty"`
	Typing    *bool              `json:"typing,omitempty"`
	Error     string             `json:"error,omitempty"`
}

type inbound struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

func NewHub(broker Subscriber, svc SessionService, presence PresenceTracker, allowedOrigins []string, log *logrus.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		broker:     broker,
		svc:        svc,
		presence:   presence,
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and browser requests from the configured origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// Run tracks connected clients until ctx ends, then closes all of them.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.log.WithField("user_id", client.userID).Debug("websocket client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.log.WithField("user_id", client.userID).Debug("websocket client disconnected")
			}

		case <-ctx.Done():
			for client := range h.clients {
				client.close()
			}
			h.clients = nil
			return
		}
	}
}

func (h *Hub) HandleWebSocket(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	// the request context ends as soon as the connection is hijacked
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan Frame, sendBuffer),
		userID:    userID,
		ctx:       ctx,
		cancel:    cancel,
		closed:    make(chan struct{}),
		subs:      make(map[string]*livesync.Subscription),
		reconcile: livesync.NewReconciler(),
	}

	select {
	case h.register <- client:
	case <-h.done:
		client.close()
		return
	}

	client.follow(livesync.UserTopic(userID))
	h.touch(ctx, userID)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) touch(ctx context.Context, userID string) {
	if h.presence == nil {
		return
	}
	if err := h.presence.Touch(ctx, userID); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Debug("presence touch failed")
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		c.cancel()
		close(c.closed)

		c.mu.Lock()
		subs := c.subs
		c.subs = nil
		c.mu.Unlock()
		for _, sub := range subs {
			sub.Close()
		}
		c.conn.Close()
	})
}

func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
		c.close()
	}
}

// follow subscribes to topic unless already subscribed.
func (c *Client) follow(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs == nil {
		return
	}
	if _, ok := c.subs[topic]; ok {
		return
	}
	sub := c.hub.broker.Subscribe(topic)
	c.subs[topic] = sub
	go c.forward(sub)
}

func (c *Client) unfollow(topic string) {
	c.mu.Lock()
	sub, ok := c.subs[topic]
	if ok {
		delete(c.subs, topic)
	}
	c.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// enqueue hands f to the writer. A client that cannot keep up is dropped.
func (c *Client) enqueue(f Frame) {
	select {
	case <-c.closed:
	case c.send <- f:
	default:
		c.hub.log.WithField("user_id", c.userID).Warn("websocket send buffer full, dropping client")
		go c.leave()
	}
}

func (c *Client) forward(sub *livesync.Subscription) {
	for ev := range sub.Events() {
		c.deliver(ev)
	}
	if errors.Is(sub.Err(), livesync.ErrSubscriptionLost) {
		c.resync(sub)
	}
}

// deliver renders ev for this client's user. Session records that are not
// newer than what was already sent are dropped.
func (c *Client) deliver(ev livesync.Event) {
	switch ev.Type {
	case livesync.EventSession, livesync.EventMatchFound, livesync.EventDirectSession:
		if ev.Session == nil {
			return
		}
		frameType := FrameSession
		switch ev.Type {
		case livesync.EventMatchFound:
			frameType = FrameMatchFound
		case livesync.EventDirectSession:
			frameType = FrameDirectSession
		}

		c.order.Lock()
		defer c.order.Unlock()
		if !c.reconcile.Accept(ev.Session) {
			return
		}
		view, err := c.hub.svc.ViewFor(c.ctx, c.userID, ev.Session)
		if err != nil {
			return
		}
		c.enqueue(Frame{Type: frameType, SessionID: view.ID, Session: view})

	case livesync.EventMessage:
		if ev.Session == nil || ev.Message == nil || !ev.Session.HasParticipant(c.userID) {
			return
		}
		view := c.hub.svc.ViewMessage(c.ctx, c.userID, ev.Session, ev.Message)
		c.enqueue(Frame{Type: FrameMessage, SessionID: ev.Message.SessionID, Message: &view})

	case livesync.EventTyping:
		if ev.ActorID == c.userID {
			return
		}
		typing := ev.Typing
		c.enqueue(Frame{
			Type:      FrameTyping,
			SessionID: strings.TrimPrefix(ev.Topic, livesync.SessionTopic("")),
			Typing:    &typing,
		})
	}
}

// resync replaces a lost subscription, tells the client and, for session
// topics, sends the current record from the store.
func (c *Client) resync(lost *livesync.Subscription) {
	topic := lost.Topic()

	c.mu.Lock()
	if c.subs == nil || c.subs[topic] != lost {
		c.mu.Unlock()
		return
	}
	sub := c.hub.broker.Subscribe(topic)
	c.subs[topic] = sub
	c.mu.Unlock()
	go c.forward(sub)

	c.enqueue(Frame{Type: FrameResync, Topic: topic})

	sessionID := strings.TrimPrefix(topic, livesync.SessionTopic(""))
	if sessionID == topic {
		return
	}
	c.reconcile.Forget(sessionID)
	c.sendCurrent(sessionID)
}

func (c *Client) sendCurrent(sessionID string) {
	view, err := c.hub.svc.Session(c.ctx, sessionID, c.userID)
	if err != nil {
		c.enqueue(Frame{Type: FrameError, SessionID: sessionID, Error: err.Error()})
		return
	}

	c.order.Lock()
	defer c.order.Unlock()
	if !c.reconcile.Accept(&models.MatchSession{ID: view.ID, Version: view.Version}) {
		return
	}
	c.enqueue(Frame{Type: FrameSession, SessionID: view.ID, Session: view})
}

func (c *Client) handle(in inbound) {
	switch in.Type {
	case FrameJoinSession:
		// the record is read after subscribing so no update falls in between
		if _, err := c.hub.svc.Session(c.ctx, in.SessionID, c.userID); err != nil {
			c.enqueue(Frame{Type: FrameError, SessionID: in.SessionID, Error: err.Error()})
			return
		}
		c.follow(livesync.SessionTopic(in.SessionID))
		c.sendCurrent(in.SessionID)

	case FrameLeaveSession:
		c.unfollow(livesync.SessionTopic(in.SessionID))
		c.reconcile.Forget(in.SessionID)

	case FrameStartTyping, FrameStopTyping:
		if err := c.hub.svc.Typing(c.ctx, in.SessionID, c.userID, in.Type == FrameStartTyping); err != nil {
			c.enqueue(Frame{Type: FrameError, SessionID: in.SessionID, Error: err.Error()})
		}

	default:
		c.enqueue(Frame{Type: FrameError, Error: "unknown frame type"})
	}
}

func (c *Client) readPump() {
	defer c.leave()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).WithField("user_id", c.userID).Warn("websocket read failed")
			}
			return
		}
		c.hub.touch(c.ctx, c.userID)

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.enqueue(Frame{Type: FrameError, Error: "invalid frame"})
			continue
		}
		c.handle(in)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.leave()
	}()

	for {
		select {
		case <-c.closed:
			return

		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.hub.log.WithError(err).WithField("user_id", c.userID).Debug("websocket write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
