package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/notify-relay/internal/adapter/metrics"
	portstream "github.com/alanyang/notify-relay/internal/port/stream"
)

type Snapshotter interface {
	Snapshot() metrics.Snapshot
}

func Register(rg *gin.RouterGroup, connector portstream.Connector, stats Snapshotter) {
	rg.GET("", getHealth(connector, stats))
}

type connectionStatus struct {
	State string `json:"state"`
	ID    string `json:"id,omitempty"`
}

type healthResp struct {
	Status     string           `json:"status"`
	Connection connectionStatus `json:"connection"`
	Metrics    metrics.Snapshot `json:"metrics"`
}

// getHealth always answers 200: a closed stream is normal until a consumer
// asks for one.
func getHealth(connector portstream.Connector, stats Snapshotter) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := healthResp{
			Status:     "ok",
			Connection: connectionStatus{State: connector.State().String()},
			Metrics:    stats.Snapshot(),
		}
		if id, ok := connector.ConnectionID(); ok {
			resp.Connection.ID = id.String()
		}
		c.JSON(http.StatusOK, resp)
	}
}
