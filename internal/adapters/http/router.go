package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/adapters/signal"
	"github.com/dkeye/signalroom/internal/config"
	"github.com/dkeye/signalroom/internal/core"
	"github.com/dkeye/signalroom/internal/domain"
	"github.com/dkeye/signalroom/internal/metrics"
)

const (
	clientTokenKey = "client_token"
	sessionName    = "SignalroomSession"
)

// Deps are the collaborators the HTTP surface exposes.
type Deps struct {
	Signal   *signal.SignalWSController
	Sessions core.SessionStore
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware pins a stable per-browser token in the cookie
// session. It is only used for log correlation.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get("ct").(string)
		if token == "" {
			token = genClientToken()
			s.Set("ct", token)
			if err := s.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save client token")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn().Str("module", "adapters.http").Msg("no secret configured, client tokens will not survive restarts")
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	if deps.Gatherer != nil {
		r.GET(cfg.MetricsPath, gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": deps.Sessions.Len()})
	})

	api.GET("/ice-servers", iceServersHandler(cfg.WebRTCICEServers()))

	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": deps.Sessions.List()})
	})

	api.POST("/sessions", func(c *gin.Context) {
		id := deps.Sessions.CreateSession()
		deps.Metrics.SessionCreated()
		log.Info().Str("module", "adapters.http").Str("client", c.GetString(clientTokenKey)).Str("session", string(id)).Msg("session created over REST")
		c.JSON(http.StatusCreated, gin.H{"session_id": id})
	})

	api.PUT("/sessions/:id", func(c *gin.Context) {
		id, err := domain.ParseSessionID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		deps.Sessions.EnsureSession(id)
		c.JSON(http.StatusOK, gin.H{"session_id": id})
	})

	api.GET("/sessions/:id", func(c *gin.Context) {
		id := domain.SessionID(c.Param("id"))
		if !deps.Sessions.Exists(id) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		members := deps.Sessions.Members(id)
		c.JSON(http.StatusOK, gin.H{
			"session_id": id,
			"count":      len(members),
			"members":    members,
		})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	return r
}

func iceServersHandler(servers []webrtc.ICEServer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, gin.H{"iceServers": servers})
	}
}
