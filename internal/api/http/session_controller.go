package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/medetbek/kinotalk/internal/config"
	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/service"
	"github.com/medetbek/kinotalk/lib/logger/sl"
	"github.com/pion/webrtc/v3"
	"golang.org/x/time/rate"
)

const (
	eventQueueSize = 32
	writeTimeout   = 5 * time.Second
)

// SessionController is the websocket gateway: it owns connection
// identity, decodes inbound frames, dispatches them to the services
// and unwinds everything a vanished connection held.
type SessionController struct {
	rooms     service.RoomInteractor
	chat      service.ChatInteractor
	calls     service.CallInteractor
	screen    service.ScreenShareInteractor
	playlists service.PlaylistInteractor
	health    service.HealthInteractor
	ice       []webrtc.ICEServer
	publicURL string
	cfg       config.SessionConfig
	upgrader  websocket.Upgrader
	log       *slog.Logger
}

func NewSessionController(
	rooms service.RoomInteractor,
	chat service.ChatInteractor,
	calls service.CallInteractor,
	screen service.ScreenShareInteractor,
	playlists service.PlaylistInteractor,
	health service.HealthInteractor,
	stunURLs []string,
	publicURL string,
	cfg config.SessionConfig,
	log *slog.Logger,
) *SessionController {
	if log == nil {
		log = slog.Default()
	}
	return &SessionController{
		rooms:     rooms,
		chat:      chat,
		calls:     calls,
		screen:    screen,
		playlists: playlists,
		health:    health,
		ice:       domain.ICEServersFromURLs(stunURLs),
		publicURL: publicURL,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log,
	}
}

// envelope is the inbound frame shape. Data stays raw until the
// handler for the tag decodes its own payload struct.
type envelope struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// wsClient owns one websocket connection: its outbound queue, writer
// goroutine and close state. enqueue and close may race freely.
type wsClient struct {
	id      string
	conn    *websocket.Conn
	events  chan domain.Event
	limiter *rate.Limiter

	mu     sync.RWMutex
	closed bool
}

// enqueue offers an event without blocking; full queues drop.
func (c *wsClient) enqueue(event domain.Event) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.events <- event:
		return true
	default:
		return false
	}
}

// close shuts the queue exactly once. The writer drains and exits,
// and the blocked read loop fails over into disconnect handling.
func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
	_ = c.conn.Close()
}

// Stream upgrades the request to a websocket and speaks the event
// protocol until the peer goes away. Session work runs on its own
// context; the request context dies with the hijacked connection.
func (c *SessionController) Stream(ctx *gin.Context) {
	conn, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Error("websocket upgrade failed", sl.Err(err))
		return
	}

	client := &wsClient{
		id:      uuid.NewString(),
		conn:    conn,
		events:  make(chan domain.Event, eventQueueSize),
		limiter: rate.NewLimiter(rate.Limit(c.cfg.EventsPerSecond), c.cfg.EventBurst),
	}
	log := c.log.With(slog.String("conn_id", client.id))
	log.Info("connection opened", slog.String("remote", conn.RemoteAddr().String()))

	c.health.Track(context.Background(), client.id, client.enqueue, client.close)

	go c.writePump(client, log)

	client.enqueue(domain.Event{
		Name: domain.EventConnected,
		Data: connectedPayload{SocketID: client.id, ICEServers: c.ice},
	})

	locale := primaryLocale(ctx.GetHeader("Accept-Language"))
	c.readLoop(context.Background(), client, locale, log)

	client.close()
	c.unwind(context.Background(), client.id)
	log.Info("connection closed")
}

func (c *SessionController) writePump(client *wsClient, log *slog.Logger) {
	for event := range client.events {
		_ = client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.conn.WriteJSON(event); err != nil {
			log.Debug("websocket write failed", sl.Err(err))
			client.close()
		}
	}
}

func (c *SessionController) readLoop(ctx context.Context, client *wsClient, locale string, log *slog.Logger) {
	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			client.enqueue(errorEvent("malformed event frame"))
			continue
		}
		c.dispatch(ctx, client, locale, env, log)
	}
}

// dispatch routes one inbound event. A panicking handler takes down
// only this event, never the connection or the process.
func (c *SessionController) dispatch(ctx context.Context, client *wsClient, locale string, env envelope, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in event handler",
				slog.String("event", env.Name),
				slog.Any("panic", r),
			)
		}
	}()

	if env.Name == "" {
		client.enqueue(errorEvent("event name is required"))
		return
	}
	if env.Name != domain.EventHeartbeatAck && !client.limiter.Allow() {
		client.enqueue(errorEvent("too many events, slow down"))
		return
	}

	switch env.Name {
	case domain.EventHeartbeatAck:
		c.health.Ack(ctx, client.id)
	case domain.EventCreateRoom:
		c.handleCreateRoom(ctx, client, locale, env.Data)
	case domain.EventJoinRoom:
		c.handleJoinRoom(ctx, client, locale, env.Data)
	case domain.EventLeaveRoom:
		c.detach(ctx, client.id)
	case domain.EventMessage:
		c.handleMessage(ctx, client, env.Data)
	case domain.EventEditMessage:
		c.handleEditMessage(ctx, client, env.Data)
	case domain.EventDeleteMessage:
		c.handleDeleteMessage(ctx, client, env.Data)
	case domain.EventMessageReaction:
		c.handleMessageReaction(ctx, client, env.Data)
	case domain.EventMessageSeen:
		c.handleMessageSeen(ctx, client, env.Data)
	case domain.EventUploadVideo:
		c.handleUploadVideo(ctx, client, env.Data)
	case domain.EventDeleteVideo:
		c.handleDeleteVideo(ctx, client)
	case domain.EventVideoControl:
		c.handleVideoControl(ctx, client, domain.EventVideoControl, env.Data)
	case domain.EventShareYouTubeLink:
		c.handleShareYouTube(ctx, client, env.Data)
	case domain.EventYouTubeControl:
		c.handleVideoControl(ctx, client, domain.EventYouTubeControl, env.Data)
	case domain.EventStartCall:
		c.handleStartCall(ctx, client, env.Data)
	case domain.EventWebRTCAnswer:
		c.handleWebRTCAnswer(ctx, client, env.Data)
	case domain.EventWebRTCICECandidate:
		c.handleWebRTCCandidate(ctx, client, env.Data)
	case domain.EventRejectCall:
		c.calls.Reject(ctx, client.id)
	case domain.EventEndCall:
		c.calls.End(ctx, client.id)
	case domain.EventRequestScreenShare:
		c.screen.Request(ctx, client.id)
	case domain.EventApproveScreenShare:
		c.handleScreenDecision(ctx, client, env.Data, true)
	case domain.EventRejectScreenShare:
		c.handleScreenDecision(ctx, client, env.Data, false)
	case domain.EventStopScreenShare:
		c.screen.Stop(ctx, client.id)
	case domain.EventUploadPlaylistMusic:
		c.handleUploadMusic(ctx, client, env.Data)
	case domain.EventRequestDeleteMusic:
		c.handleRequestDeleteMusic(ctx, client, env.Data)
	case domain.EventConfirmDeleteMusic:
		c.handleConfirmDeleteMusic(ctx, client, env.Data)
	default:
		log.Debug("unknown event", slog.String("event", env.Name))
	}
}

// detach unwinds room state for an explicit leave or a room switch;
// the connection itself stays open and tracked.
func (c *SessionController) detach(ctx context.Context, connID string) {
	c.calls.Terminate(ctx, connID, "ended")
	c.screen.HandleDisconnect(ctx, connID)
	c.rooms.LeaveRoom(ctx, connID)
}

// unwind tears down everything a vanished connection held, in
// dependency order: call, screen share, membership, liveness record.
func (c *SessionController) unwind(ctx context.Context, connID string) {
	c.calls.Terminate(ctx, connID, "connection_lost")
	c.screen.HandleDisconnect(ctx, connID)
	c.rooms.LeaveRoom(ctx, connID)
	c.health.Untrack(ctx, connID)
}

func (c *SessionController) joinLink(code string) string {
	return strings.TrimRight(c.publicURL, "/") + "/join/" + code
}

func (c *SessionController) fail(client *wsClient, err error) {
	client.enqueue(errorEvent(err.Error()))
}

func (c *SessionController) failCall(client *wsClient, err error) {
	client.enqueue(domain.Event{
		Name: domain.EventCallError,
		Data: domain.ErrorPayload{Message: err.Error()},
	})
}

func (c *SessionController) badPayload(client *wsClient, event string) {
	client.enqueue(errorEvent("malformed payload for " + event))
}

func errorEvent(msg string) domain.Event {
	return domain.Event{Name: domain.EventError, Data: domain.ErrorPayload{Message: msg}}
}

// primaryLocale picks the leading language tag from an
// Accept-Language header, defaulting to "en".
func primaryLocale(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return "en"
	}
	first := header
	if i := strings.IndexAny(header, ",;"); i >= 0 {
		first = header[:i]
	}
	first = strings.TrimSpace(first)
	if first == "" || first == "*" {
		return "en"
	}
	return first
}

type connectedPayload struct {
	SocketID   string             `json:"socketId"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}
