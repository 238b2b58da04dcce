package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/entigo/internal/config"
	"github.com/turtacn/entigo/internal/interfaces/http/handlers"
)

func TestNewServer(t *testing.T) {
	cfg := config.NewDefaultConfig().Server
	cfg.Host = "127.0.0.1"
	cfg.Port = 9090

	s := NewServer(cfg, http.NewServeMux(), nil)
	assert.Equal(t, "127.0.0.1:9090", s.Addr())
	assert.Equal(t, cfg.ReadTimeout, s.srv.ReadTimeout)
	assert.Equal(t, cfg.WriteTimeout, s.srv.WriteTimeout)
}

func TestServer_ServeAndStop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	router := NewRouter(RouterConfig{HealthHandler: handlers.NewHealthHandler("test")})
	s := NewServer(config.NewDefaultConfig().Server, router, nil)

	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "alive")

	require.NoError(t, s.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

//Personal.AI order the ending
