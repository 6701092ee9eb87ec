package connection_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainconnection "github.com/alanyang/notify-relay/internal/domain/connection"
	"github.com/alanyang/notify-relay/internal/mocks"
	transportconnection "github.com/alanyang/notify-relay/internal/transport/connection"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(t *testing.T) (*gin.Engine, *mocks.MockConnector) {
	t.Helper()
	ctrl := gomock.NewController(t)
	connector := mocks.NewMockConnector(ctrl)

	r := gin.New()
	transportconnection.Register(r.Group("/connection"), connector)
	return r, connector
}

func post(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, "/connection", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestObtain_Success(t *testing.T) {
	r, connector := newRouter(t)
	id := uuid.New()
	connector.EXPECT().Connect(gomock.Any()).Return(id, nil)
	connector.EXPECT().State().Return(domainconnection.StateOpen)

	w := post(r)

	assert.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, id.String(), got["connection_id"])
	assert.Equal(t, "open", got["state"])
}

func TestObtain_DialFailure(t *testing.T) {
	r, connector := newRouter(t)
	connector.EXPECT().Connect(gomock.Any()).Return(uuid.Nil, errors.New("dialing stream: refused"))

	w := post(r)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "refused")
}
