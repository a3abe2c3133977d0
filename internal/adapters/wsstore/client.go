package wsstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Cast/internal/core"
)

const DefaultKeepAlive = 15 * time.Second

type ClientOption func(*Client)

// WithKeepAlive sets the ping interval. Zero disables pings.
func WithKeepAlive(d time.Duration) ClientOption {
	return func(c *Client) { c.keepAlive = d }
}

// Client is a core.DocumentStore backed by a remote Controller.
type Client struct {
	conn      *websocket.Conn
	keepAlive time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	seq     uint64
	nextSub uint64
	pending map[uint64]chan frame
	subs    map[uint64]*remoteSub
	err     error

	done chan struct{}
	wg   conc.WaitGroup
}

var _ core.DocumentStore = (*Client)(nil)

func Dial(ctx context.Context, url string, header http.Header, opts ...ClientOption) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrClosed, url, err)
	}
	c := &Client{
		conn:      ws,
		keepAlive: DefaultKeepAlive,
		pending:   make(map[uint64]chan frame),
		subs:      make(map[uint64]*remoteSub),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.wg.Go(c.readLoop)
	if c.keepAlive > 0 {
		c.wg.Go(c.pingLoop)
	}
	log.Info().Str("module", "wsstore.client").Str("url", url).Msg("connected")
	return c, nil
}

func (c *Client) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	r, err := c.call(ctx, frame{Type: typeAdd, Collection: collection, Data: data})
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (c *Client) Set(ctx context.Context, collection, id string, data map[string]any) error {
	_, err := c.call(ctx, frame{Type: typeSet, Collection: collection, ID: id, Data: data})
	return err
}

func (c *Client) Update(ctx context.Context, collection, id string, data map[string]any) error {
	_, err := c.call(ctx, frame{Type: typeUpdate, Collection: collection, ID: id, Data: data})
	return err
}

func (c *Client) Get(ctx context.Context, collection, id string) (core.Document, error) {
	r, err := c.call(ctx, frame{Type: typeGet, Collection: collection, ID: id})
	if err != nil {
		return core.Document{}, err
	}
	return r.Doc.document(), nil
}

func (c *Client) Listen(ctx context.Context, q core.Query, onChange func(core.DocumentChange), onErr func(error)) (core.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := newRemoteSub(onChange, onErr)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.nextSub++
	id := c.nextSub
	c.subs[id] = s
	c.mu.Unlock()
	c.wg.Go(s.run)

	f := frame{Type: typeListen, Sub: id, Collection: q.Collection}
	if !q.CreatedAfter.IsZero() {
		f.CreatedAfter = q.CreatedAfter.UnixNano()
	}
	if _, err := c.call(ctx, f); err != nil {
		c.dropSub(id)
		return nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if c.dropSub(id) {
				c.send(frame{Type: typeUnlisten, Sub: id})
			}
		})
	}
	stopAfter := context.AfterFunc(ctx, cancel)
	return core.SubscriptionFunc(func() {
		stopAfter()
		cancel()
	}), nil
}

// Ping round-trips a ping frame.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, frame{Type: typePing})
	return err
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	err := c.conn.Close()
	c.wg.Wait()
	return err
}

func (c *Client) call(ctx context.Context, f frame) (frame, error) {
	reply := make(chan frame, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return frame{}, err
	}
	c.seq++
	f.Seq = c.seq
	c.pending[f.Seq] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, f.Seq)
		c.mu.Unlock()
	}()

	if err := c.write(f); err != nil {
		return frame{}, err
	}
	select {
	case r := <-reply:
		if r.Type == typeError {
			return r, r.err()
		}
		return r, nil
	case <-c.done:
		return frame{}, c.closedErr()
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

// send writes without waiting for a reply.
func (c *Client) send(f frame) {
	if err := c.write(f); err != nil {
		log.Debug().Err(err).Str("module", "wsstore.client").Str("type", f.Type).Msg("send dropped")
	}
}

func (c *Client) write(f frame) error {
	b, err := encodeFrame(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return nil
}

func (c *Client) dropSub(id uint64) bool {
	c.mu.Lock()
	s, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		s.stop()
	}
	return ok
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

func (c *Client) readLoop() {
	var cause error
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			cause = err
			break
		}
		f, err := decodeFrame(data)
		if err != nil {
			log.Error().Err(err).Str("module", "wsstore.client").Msg("bad json")
			continue
		}
		c.dispatch(f)
	}
	c.fail(cause)
}

func (c *Client) dispatch(f frame) {
	switch f.Type {
	case typeResult, typeError, typePong:
		c.mu.Lock()
		reply, ok := c.pending[f.Seq]
		c.mu.Unlock()
		if ok {
			reply <- f
		}
	case typeChange:
		kind, ok := kindOf(f.Kind)
		if !ok || f.Doc == nil {
			log.Warn().Str("module", "wsstore.client").Str("kind", f.Kind).Msg("bad change frame")
			return
		}
		if s := c.sub(f.Sub); s != nil {
			s.push(item{change: core.DocumentChange{Kind: kind, Document: f.Doc.document()}})
		}
	case typeSubError:
		if s := c.sub(f.Sub); s != nil {
			s.push(item{err: fmt.Errorf("%w: %s", ErrRemote, f.Error)})
		}
	default:
		log.Warn().Str("module", "wsstore.client").Str("type", f.Type).Msg("unknown frame")
	}
}

func (c *Client) sub(id uint64) *remoteSub {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[id]
}

// fail ends every pending call and tells each listener the stream is gone.
func (c *Client) fail(cause error) {
	err := ErrClosed
	if cause != nil && !websocket.IsCloseError(cause, websocket.CloseNormalClosure) && !errors.Is(cause, net.ErrClosed) {
		err = fmt.Errorf("%w: %w", ErrClosed, cause)
	}

	c.mu.Lock()
	c.err = err
	subs := c.subs
	c.subs = make(map[uint64]*remoteSub)
	c.mu.Unlock()
	close(c.done)

	for _, s := range subs {
		s.push(item{err: err})
		s.close()
	}
	log.Info().Err(cause).Str("module", "wsstore.client").Msg("connection closed")
}

func (c *Client) pingLoop() {
	t := time.NewTicker(c.keepAlive)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.keepAlive)
			err := c.Ping(ctx)
			cancel()
			if err != nil && !errors.Is(err, ErrClosed) {
				log.Warn().Err(err).Str("module", "wsstore.client").Msg("keepalive")
			}
		}
	}
}

type item struct {
	change core.DocumentChange
	err    error
}

// remoteSub hands frames to the callbacks in arrival order, off the read loop.
type remoteSub struct {
	onChange func(core.DocumentChange)
	onErr    func(error)

	mu       sync.Mutex
	items    []item
	draining bool
	notify   chan struct{}
	done     chan struct{}
	once     sync.Once
}

func newRemoteSub(onChange func(core.DocumentChange), onErr func(error)) *remoteSub {
	return &remoteSub{
		onChange: onChange,
		onErr:    onErr,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (s *remoteSub) push(it item) {
	s.mu.Lock()
	s.items = append(s.items, it)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// stop drops anything still queued.
func (s *remoteSub) stop() {
	s.once.Do(func() { close(s.done) })
}

// close delivers what is queued, then stops.
func (s *remoteSub) close() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *remoteSub) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}
		s.mu.Lock()
		batch := s.items
		s.items = nil
		draining := s.draining
		s.mu.Unlock()

		for _, it := range batch {
			select {
			case <-s.done:
				return
			default:
			}
			switch {
			case it.err != nil:
				if s.onErr != nil {
					s.onErr(it.err)
				}
			case s.onChange != nil:
				s.onChange(it.change)
			}
		}
		if draining {
			s.stop()
			return
		}
	}
}
