package middleware

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"

	"esimsync/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func panicRouter(value interface{}) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery(logger.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic(value) })
	return r
}

func TestRecovery_RespondsWithUnexpectedKind(t *testing.T) {
	rec := httptest.NewRecorder()
	panicRouter("boom").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unexpected", body["kind"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRecovery_ClientHangupWritesNothing(t *testing.T) {
	hangup := &net.OpError{Op: "write", Net: "tcp", Err: os.NewSyscallError("write", syscall.EPIPE)}

	rec := httptest.NewRecorder()
	panicRouter(hangup).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.NotEqual(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestClientGone(t *testing.T) {
	tests := []struct {
		name      string
		recovered interface{}
		want      bool
	}{
		{"broken pipe", &net.OpError{Err: os.NewSyscallError("write", syscall.EPIPE)}, true},
		{"connection reset", &net.OpError{Err: os.NewSyscallError("read", syscall.ECONNRESET)}, true},
		{"other error", errors.New("nil map"), false},
		{"string", "boom", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clientGone(tt.recovered))
		})
	}
}
