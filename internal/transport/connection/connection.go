package connection

import (
	"net/http"

	"github.com/gin-gonic/gin"

	portstream "github.com/alanyang/notify-relay/internal/port/stream"
)

func Register(rg *gin.RouterGroup, connector portstream.Connector) {
	rg.POST("", obtain(connector))
}

func obtain(connector portstream.Connector) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := connector.Connect(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"connection_id": id.String(),
			"state":         connector.State().String(),
		})
	}
}
