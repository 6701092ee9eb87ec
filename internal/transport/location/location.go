package location

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	portstream "github.com/alanyang/notify-relay/internal/port/stream"
)

// Store holds the current view path.
type Store interface {
	Current() string
	Set(path string)
}

func Register(rg *gin.RouterGroup, store Store, connector portstream.Connector) {
	rg.GET("", getLocation(store))
	rg.PUT("", setLocation(store, connector))
}

type setLocationReq struct {
	Path string `json:"path" binding:"required"`
}

type locationResp struct {
	Path            string `json:"path"`
	ConnectionID    string `json:"connection_id,omitempty"`
	ConnectionError string `json:"connection_error,omitempty"`
}

func getLocation(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, locationResp{Path: store.Current()})
	}
}

// setLocation records the new view and, as a consumer of notifications, asks
// for a live stream. A failed dial does not undo the location change.
func setLocation(store Store, connector portstream.Connector) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setLocationReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if !strings.HasPrefix(req.Path, "/") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path must start with /"})
			return
		}

		store.Set(req.Path)
		resp := locationResp{Path: req.Path}

		id, err := connector.Connect(c.Request.Context())
		if err != nil {
			slog.Warn("location changed without a live stream", "path", req.Path, "error", err)
			resp.ConnectionError = err.Error()
		} else {
			resp.ConnectionID = id.String()
		}
		c.JSON(http.StatusOK, resp)
	}
}
