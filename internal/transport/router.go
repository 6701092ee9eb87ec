package transport

import (
	"github.com/gin-gonic/gin"

	portstream "github.com/alanyang/notify-relay/internal/port/stream"

	connectionhandler "github.com/alanyang/notify-relay/internal/transport/connection"
	healthhandler "github.com/alanyang/notify-relay/internal/transport/health"
	locationhandler "github.com/alanyang/notify-relay/internal/transport/location"
	wshandler "github.com/alanyang/notify-relay/internal/transport/ws"
)

func NewRouter(
	connector portstream.Connector,
	location locationhandler.Store,
	stats healthhandler.Snapshotter,
	hub *wshandler.Hub,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware())

	api := r.Group("/api")

	healthhandler.Register(api.Group("/health"), connector, stats)
	locationhandler.Register(api.Group("/location"), location, connector)
	connectionhandler.Register(api.Group("/connection"), connector)

	// The hub is also the UI sink; it is built by the caller so the relay
	// can be handed the same instance.
	hub.Register(api.Group("/ws"))

	return r
}
