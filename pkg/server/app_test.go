package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"StockSense/pkg/config"
	xhttp "StockSense/pkg/http"
	applogger "StockSense/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestApp_RunContext(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Port = freePort(t)
	cfg.Server.ShutdownTimeout = 2 * time.Second

	srv := xhttp.NewServer(pingHandler{},
		xhttp.WithHost("127.0.0.1"),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithMetrics(""),
	)
	app := New(cfg, applogger.NewNop(), srv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunContext(ctx) }()

	url := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Server.Port)) + "/ping"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
}
