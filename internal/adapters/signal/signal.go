package signal

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/signalroom/internal/app"
	"github.com/dkeye/signalroom/internal/config"
	"github.com/dkeye/signalroom/internal/core"
	"github.com/dkeye/signalroom/internal/domain"
	"github.com/dkeye/signalroom/internal/metrics"
)

// SignalWSController upgrades HTTP requests to signaling connections and
// feeds their events to the Router.
type SignalWSController struct {
	Router  *app.Router
	Conns   *core.Registry
	Metrics *metrics.Metrics
	Cfg     config.SignalConfig
}

func NewSignalWSController(router *app.Router, conns *core.Registry, m *metrics.Metrics, cfg config.SignalConfig) *SignalWSController {
	return &SignalWSController{
		Router:  router,
		Conns:   conns,
		Metrics: m,
		Cfg:     cfg,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleSignal serves one WebSocket for its whole life. ctx bounds all
// connections; cancelling it closes them.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	client := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	ctl.Serve(ctx, NewWsSignalConn(domain.ConnID(uuid.NewString()), client, ws, ctl.Cfg.SendQueue))
}

// Serve registers conn and starts its pumps. The read pump owns teardown:
// unregister, disconnect, close.
func (ctl *SignalWSController) Serve(ctx context.Context, conn *WsSignalConn) {
	ctl.Conns.Register(conn.id, conn)
	log.Info().Str("module", "signal").Str("conn", string(conn.id)).Str("client", conn.client).Msg("connected")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}
