package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/solvane/phonefleet-console/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Wire framing for the status feed. The broker speaks a small JSON protocol:
// the client sends connect with a short-lived token, subscribes to its
// per-principal channel, and then receives publications as pushes.
type command struct {
	ID        uint32            `json:"id,omitempty"`
	Connect   *connectRequest   `json:"connect,omitempty"`
	Subscribe *subscribeRequest `json:"subscribe,omitempty"`
}

type connectRequest struct {
	Token string `json:"token"`
}

type subscribeRequest struct {
	Channel string `json:"channel"`
}

type reply struct {
	ID    uint32      `json:"id,omitempty"`
	Error *replyError `json:"error,omitempty"`
	Push  *push       `json:"push,omitempty"`
}

type replyError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type push struct {
	Channel string       `json:"channel"`
	Pub     *publication `json:"pub,omitempty"`
}

type publication struct {
	Data json.RawMessage `json:"data"`
}

const (
	connectCommandID   = 1
	subscribeCommandID = 2
)

// Feed maintains the broker connection and keeps State current. It
// reconnects transparently on transport drops; a token the broker rejects
// outright stops the feed and leaves State disconnected instead of
// crash-looping.
type Feed struct {
	url     string
	channel func() string
	tokens  oauth2.TokenSource
	state   *State
	dialer  *websocket.Dialer
}

func New(url string, channel func() string, tokens oauth2.TokenSource, state *State) *Feed {
	return &Feed{
		url:     url,
		channel: channel,
		tokens:  tokens,
		state:   state,
		dialer:  websocket.DefaultDialer,
	}
}

// Run connects and consumes publications until ctx is cancelled or the
// broker permanently rejects our credentials.
func (f *Feed) Run(ctx context.Context) {
	var delay time.Duration
	for {
		connected, err := f.runOnce(ctx)
		f.state.setConnected(false)

		if ctx.Err() != nil {
			return
		}
		if _, ok := err.(*authError); ok {
			slog.Error("status feed rejected credentials, giving up", "error", err)
			return
		}

		delay = nextDelay(delay, connected)
		if err != nil {
			slog.Warn("status feed disconnected, retrying", "error", err, "backoff", delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// nextDelay returns the wait before the next dial. A session that got
// through the handshake restarts the ladder at the initial delay, so a
// stable link that drops once reconnects quickly; consecutive failed dials
// keep doubling up to the cap.
func nextDelay(prev time.Duration, connected bool) time.Duration {
	if connected || prev == 0 {
		return initialBackoff
	}
	next := prev * 2
	if next > maxBackoff {
		next = maxBackoff
	}
	return next
}

type authError struct {
	code    int
	message string
}

func (e *authError) Error() string {
	return fmt.Sprintf("feed auth rejected: %s (code %d)", e.message, e.code)
}

// runOnce dials, handshakes and consumes one session. The bool reports
// whether the handshake completed, regardless of how the session ended.
func (f *Feed) runOnce(ctx context.Context) (bool, error) {
	token, err := f.tokens.Token()
	if err != nil {
		return false, fmt.Errorf("fetching feed token: %w", err)
	}

	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return false, fmt.Errorf("dialing broker: %w", err)
	}
	defer conn.Close()

	if err := f.handshake(conn, token.AccessToken); err != nil {
		return false, err
	}

	f.state.setConnected(true)
	slog.Info("status feed connected", "channel", f.channel())

	// Close the connection when ctx is cancelled so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	go f.pingLoop(conn, done)

	return true, f.readLoop(conn)
}

func (f *Feed) handshake(conn *websocket.Conn, token string) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(command{ID: connectCommandID, Connect: &connectRequest{Token: token}}); err != nil {
		return fmt.Errorf("sending connect: %w", err)
	}
	if err := f.expectAck(conn, connectCommandID); err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(command{ID: subscribeCommandID, Subscribe: &subscribeRequest{Channel: f.channel()}}); err != nil {
		return fmt.Errorf("sending subscribe: %w", err)
	}
	return f.expectAck(conn, subscribeCommandID)
}

// expectAck reads until the reply for the given command arrives, applying
// any publications that interleave with it.
func (f *Feed) expectAck(conn *websocket.Conn, id uint32) error {
	for {
		conn.SetReadDeadline(time.Now().Add(writeWait))
		var r reply
		if err := conn.ReadJSON(&r); err != nil {
			return fmt.Errorf("awaiting ack %d: %w", id, err)
		}
		if r.Push != nil {
			f.handlePush(r.Push)
			continue
		}
		if r.ID != id {
			continue
		}
		if r.Error != nil {
			return &authError{code: r.Error.Code, message: r.Error.Message}
		}
		return nil
	}
}

func (f *Feed) readLoop(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var r reply
		if err := conn.ReadJSON(&r); err != nil {
			return err
		}
		if r.Push != nil {
			f.handlePush(r.Push)
		}
	}
}

func (f *Feed) handlePush(p *push) {
	if p.Pub == nil {
		return
	}
	var ev models.StatusEvent
	if err := json.Unmarshal(p.Pub.Data, &ev); err != nil {
		slog.Warn("dropping malformed feed publication", "channel", p.Channel, "error", err)
		return
	}
	f.state.apply(ev)
}

func (f *Feed) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
