package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

const (
	linkReconnectDelay = 5 * time.Second
	linkWriteTimeout   = 10 * time.Second
	linkBuffer         = 32
)

type LinkOptions struct {
	URL            string
	APIKey         string
	AgentKey       string
	ReconnectDelay time.Duration
}

// OperatorLink keeps the booth registered with a remote operator console
// over a websocket. Commands from the console are queued as remote input and
// booth events are pushed back as status messages.
type OperatorLink struct {
	opts   LinkOptions
	queue  *EventQueue
	events chan model.BoothEvent
	log    zerolog.Logger

	dropped   atomic.Int64
	connected atomic.Bool
}

func NewOperatorLink(opts LinkOptions, queue *EventQueue, log zerolog.Logger) *OperatorLink {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = linkReconnectDelay
	}
	return &OperatorLink{
		opts:   opts,
		queue:  queue,
		events: make(chan model.BoothEvent, linkBuffer),
		log:    log.With().Str("component", "link").Str("agent_key", opts.AgentKey).Logger(),
	}
}

// Notify queues ev for the console without blocking. Events are dropped
// while the buffer is full.
func (l *OperatorLink) Notify(ev model.BoothEvent) {
	select {
	case l.events <- ev:
	default:
		l.dropped.Add(1)
	}
}

func (l *OperatorLink) Connected() bool { return l.connected.Load() }

// Run dials the console and reconnects after every disconnect until ctx is
// done.
func (l *OperatorLink) Run(ctx context.Context) {
	header := http.Header{}
	if l.opts.APIKey != "" {
		header.Add("X-Api-Key", l.opts.APIKey)
	}

	l.log.Info().Str("url", l.opts.URL).Msg("Connecting to operator console")
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.opts.URL, header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Warn().Err(err).Dur("retry_in", l.opts.ReconnectDelay).Msg("Connection failed")
		} else {
			l.log.Info().Msg("Connected")
			l.connected.Store(true)
			err := l.handleConnection(ctx, conn)
			l.connected.Store(false)
			conn.Close()
			if ctx.Err() != nil {
				return
			}
			l.log.Warn().Err(err).Dur("retry_in", l.opts.ReconnectDelay).Msg("Disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.opts.ReconnectDelay):
		}
	}
}

var errUnregistered = errors.New("console requested unregister")

// handleConnection registers the agent and serves one connection. All writes
// go through the writer goroutine.
func (l *OperatorLink) handleConnection(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan model.WSMessage, linkBuffer)
	writeErr := make(chan error, 1)
	go func() { writeErr <- l.writeLoop(ctx, conn, out) }()

	send := func(msg model.WSMessage) {
		msg.AgentKey = l.opts.AgentKey
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	}
	send(model.WSMessage{Type: model.MessageTypeRegister})

	readErr := make(chan error, 1)
	go func() {
		for {
			var msg model.WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			if err := l.handleMessage(msg, send); err != nil {
				readErr <- err
				return
			}
		}
	}()

	select {
	case err := <-readErr:
		return err
	case err := <-writeErr:
		return err
	case <-ctx.Done():
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"),
			time.Now().Add(time.Second))
		return ctx.Err()
	}
}

func (l *OperatorLink) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan model.WSMessage) error {
	for {
		var msg model.WSMessage
		select {
		case <-ctx.Done():
			return nil
		case msg = <-out:
		case ev := <-l.events:
			msg = model.WSMessage{Type: model.MessageTypeStatus, AgentKey: l.opts.AgentKey, Event: &ev}
		}
		_ = conn.SetWriteDeadline(time.Now().Add(linkWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}
	}
}

func (l *OperatorLink) handleMessage(msg model.WSMessage, send func(model.WSMessage)) error {
	switch msg.Type {
	case model.MessageTypeRegistered:
		l.log.Info().Msg("Registered with operator console")

	case model.MessageTypePing:
		send(model.WSMessage{Type: model.MessageTypePong})

	case model.MessageTypeCommand:
		ev, ok := model.ParseCommand(msg.Command, model.SourceRemote)
		if !ok {
			send(model.WSMessage{Type: model.MessageTypeError, Command: msg.Command, Error: "unknown command"})
			return nil
		}
		if !l.queue.Push(ev) {
			send(model.WSMessage{Type: model.MessageTypeError, Command: msg.Command, Error: "booth busy"})
			return nil
		}
		l.log.Info().Str("command", msg.Command).Msg("Remote command queued")
		send(model.WSMessage{Type: model.MessageTypeAck, Command: msg.Command})

	case model.MessageTypeUnregister:
		return errUnregistered

	default:
		l.log.Debug().Str("type", string(msg.Type)).Msg("Unknown message type")
	}
	return nil
}
