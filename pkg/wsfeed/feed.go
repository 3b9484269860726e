package wsfeed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/ripple-ui/ripple/pkg/loop"
	"github.com/ripple-ui/ripple/pkg/reactive"
)

// Config holds feed connection tuning.
type Config struct {
	// ReadTimeout bounds how long a read may block before the connection is
	// considered dead. Refreshed on every message and pong.
	ReadTimeout time.Duration

	// WriteTimeout bounds control-frame writes.
	WriteTimeout time.Duration

	// HeartbeatInterval is how often a ping is sent. Must be shorter than
	// ReadTimeout or the peer's silence looks like a dead connection.
	HeartbeatInterval time.Duration

	// Dialer performs the connection handshake.
	// Default: websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Logger receives read and decode failures.
	Logger *slog.Logger
}

// FeedOption configures a Feed.
type FeedOption func(*Config)

// WithReadTimeout sets the read deadline window.
func WithReadTimeout(d time.Duration) FeedOption {
	return func(c *Config) {
		c.ReadTimeout = d
	}
}

// WithHeartbeat sets the ping interval.
func WithHeartbeat(d time.Duration) FeedOption {
	return func(c *Config) {
		c.HeartbeatInterval = d
	}
}

// WithDialer sets the WebSocket dialer used to connect.
func WithDialer(d *websocket.Dialer) FeedOption {
	return func(c *Config) {
		c.Dialer = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) FeedOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

func defaultConfig() Config {
	return Config{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		Dialer:            websocket.DefaultDialer,
		Logger:            slog.Default().With("component", "wsfeed"),
	}
}

// Feed is a live WebSocket subscription delivering decoded messages of type T
// onto a dispatch loop. The handler always runs on the loop's owning
// goroutine, one message at a time, in arrival order.
type Feed[T any] struct {
	conn   *websocket.Conn
	loop   *loop.Loop
	handle func(T)

	config Config
	logger *slog.Logger

	done     chan struct{}
	closed   atomic.Bool
	writeMu  sync.Mutex
	received atomic.Uint64
}

// Subscribe dials url, starts the read and heartbeat goroutines, and calls
// handle on the loop's owning goroutine for every decoded message.
//
// If a reactive.Owner is current, the feed closes automatically when the
// owner unmounts.
func Subscribe[T any](ctx context.Context, l *loop.Loop, url string, handle func(T), opts ...FeedOption) (*Feed[T], error) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	conn, _, err := config.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	f := &Feed[T]{
		conn:   conn,
		loop:   l,
		handle: handle,
		config: config,
		logger: config.Logger.With("url", url),
		done:   make(chan struct{}),
	}

	if owner := reactive.CurrentOwner(); owner != nil {
		owner.RegisterTask(f)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(config.ReadTimeout))
	})

	go f.readLoop()
	go f.heartbeatLoop()

	return f, nil
}

// SubscribeSignal dials url and writes every decoded message into sig
// through a Sender, so effects tracking the signal re-run per message.
func SubscribeSignal[T any](ctx context.Context, l *loop.Loop, url string, sig *reactive.Signal[T], opts ...FeedOption) (*Feed[T], error) {
	sender := loop.NewSender(l, sig)
	return Subscribe(ctx, l, url, sender.Set, opts...)
}

// readLoop reads until the connection dies, decoding each message and
// handing it to the dispatch loop.
func (f *Feed[T]) readLoop() {
	defer f.Close()

	for {
		f.conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, msg, err := f.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				f.logger.Error("read error", "error", err)
			}
			return
		}

		var value T
		if err := json.Unmarshal(msg, &value); err != nil {
			f.logger.Error("message decode error", "error", err)
			continue
		}

		f.received.Add(1)
		f.loop.Dispatch(func() {
			f.handle(value)
		})
	}
}

// heartbeatLoop sends periodic pings until the feed closes.
func (f *Feed[T]) heartbeatLoop() {
	ticker := time.NewTicker(f.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := f.ping(); err != nil {
				f.logger.Error("ping error", "error", err)
				f.Close()
				return
			}
		case <-f.done:
			return
		}
	}
}

func (f *Feed[T]) ping() error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	return f.conn.WriteMessage(websocket.PingMessage, nil)
}

// Send encodes v and writes it to the peer. Safe from any goroutine.
func (f *Feed[T]) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	return f.conn.WriteMessage(websocket.TextMessage, data)
}

// Received reports the number of messages decoded so far.
func (f *Feed[T]) Received() uint64 {
	return f.received.Load()
}

// Done is closed when the feed shuts down.
func (f *Feed[T]) Done() <-chan struct{} {
	return f.done
}

// Close tears down the connection and stops both goroutines. Messages already
// dispatched but not yet drained still run. Idempotent.
func (f *Feed[T]) Close() {
	if f.closed.Swap(true) {
		return
	}
	close(f.done)

	f.writeMu.Lock()
	f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
	f.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	f.writeMu.Unlock()

	f.conn.Close()
}

// Abort implements reactive.Abortable so owner unmount closes the feed.
func (f *Feed[T]) Abort() {
	f.Close()
}
