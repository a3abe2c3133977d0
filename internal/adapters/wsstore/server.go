package wsstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/core"
)

var errBadRequest = errors.New("bad request")

const (
	DefaultReadLimit  = 1 << 20
	DefaultPingPeriod = 30 * time.Second
	maxPathSegments   = 3
)

// Controller serves a DocumentStore to websocket clients.
type Controller struct {
	Store   core.DocumentStore
	Limiter *RateLimiter
	// ReadLimit bounds a single inbound frame.
	ReadLimit int64
	// PingPeriod also sets how long a silent client is kept.
	PingPeriod time.Duration
}

func NewController(store core.DocumentStore, limiter *RateLimiter) *Controller {
	return &Controller{
		Store:      store,
		Limiter:    limiter,
		ReadLimit:  DefaultReadLimit,
		PingPeriod: DefaultPingPeriod,
	}
}

// peer is the per-connection state: who it is and what it listens to.
type peer struct {
	token string
	conn  *wsConn

	mu   sync.Mutex
	subs map[uint64]core.Subscription
}

func (p *peer) cancelAll() {
	p.mu.Lock()
	subs := p.subs
	p.subs = make(map[uint64]core.Subscription)
	p.mu.Unlock()
	for _, s := range subs {
		s.Cancel()
	}
}

// HandleStore upgrades the request and serves it until the socket or ctx
// closes. The client token comes from the session middleware.
func (ctl *Controller) HandleStore(ctx context.Context, c *gin.Context) {
	token := c.GetString("client_token")
	log.Info().Str("module", "wsstore").Str("client", token).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "wsstore").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	p := &peer{
		token: token,
		conn:  newWSConn(ws),
		subs:  make(map[uint64]core.Subscription),
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ctx, p.conn.Close)

	go ctl.writePump(ctx, p.conn)
	go func() {
		defer stop()
		defer cancel()
		ctl.readPump(ctx, p)
	}()
}

func validPath(coll string) bool {
	if coll == "" || strings.HasPrefix(coll, "/") || strings.HasSuffix(coll, "/") {
		return false
	}
	parts := strings.Split(coll, "/")
	if len(parts) > maxPathSegments || len(parts)%2 == 0 {
		return false
	}
	for _, s := range parts {
		if s == "" {
			return false
		}
	}
	return true
}
