package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cast/internal/adapters/wsstore"
	"github.com/dkeye/Cast/internal/app"
	"github.com/dkeye/Cast/internal/config"
	"github.com/dkeye/Cast/internal/core"
	"github.com/dkeye/Cast/internal/domain"
)

const presenceReadTimeout = 5 * time.Second

// Deps are the hub components the router exposes. Presence and Registry
// are optional.
type Deps struct {
	Store    *wsstore.Controller
	Presence core.PresenceCounter
	Registry *app.Registry
}

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = c.GetHeader("X-Client-Token")
		}
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CastSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	if deps.Store != nil {
		api.GET("/ws/store", func(c *gin.Context) {
			touchSession(c)
			log.Info().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws store endpoint hit")
			deps.Store.HandleStore(ctx, c)
		})
	}

	if deps.Presence != nil {
		api.GET("/presence", func(c *gin.Context) {
			rctx, cancel := context.WithTimeout(c.Request.Context(), presenceReadTimeout)
			defer cancel()
			rec, err := deps.Presence.Read(rctx)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				log.Error().Err(err).Str("module", "adapters.http").Msg("presence read")
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, rec.Normalize())
		})
		api.GET("/presence/stream", func(c *gin.Context) {
			streamPresence(c, deps.Presence)
		})
	}

	if deps.Registry != nil {
		api.GET("/sessions", func(c *gin.Context) {
			c.JSON(http.StatusOK, deps.Registry.List())
		})
		api.GET("/sessions/:id", func(c *gin.Context) {
			info, ok := deps.Registry.Get(domain.SessionID(c.Param("id")))
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			c.JSON(http.StatusOK, info)
		})
	}

	return r
}

// touchSession records the first connect time in the cookie session.
func touchSession(c *gin.Context) {
	s := sessions.Default(c)
	if s.Get("since") != nil {
		return
	}
	s.Set("since", time.Now().Unix())
	if err := s.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
	}
}

// streamPresence pushes every presence change as a server-sent event until
// the client goes away.
func streamPresence(c *gin.Context, p core.PresenceCounter) {
	ctx := c.Request.Context()
	updates := make(chan domain.PresenceRecord, 8)
	failed := make(chan error, 1)

	sub, err := p.Watch(ctx, func(rec domain.PresenceRecord) {
		select {
		case updates <- rec:
		default:
			// keep the newest when the client lags
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- rec:
			default:
			}
		}
	}, func(err error) {
		select {
		case failed <- err:
		default:
		}
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	defer sub.Cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case err := <-failed:
			c.SSEvent("error", gin.H{"error": err.Error()})
			return false
		case rec := <-updates:
			c.SSEvent("presence", rec.Normalize())
			return true
		}
	})
}
