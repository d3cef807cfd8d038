package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"webmonitor/internal/config"
)

func TestServerLifecycle(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "server.db")

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := New(cfg).WithListener(l)
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-done:
		t.Fatalf("Expected server to start, got %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for server")
	}

	t.Run("serves the API", func(t *testing.T) {
		resp, err := http.Get("http://" + l.Addr().String() + "/api/ping")
		if err != nil {
			t.Fatalf("Expected ping to succeed, got %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", resp.StatusCode)
		}
	})

	t.Run("seeds the admin", func(t *testing.T) {
		resp, err := http.Post("http://"+l.Addr().String()+"/login", "application/json",
			jsonBody(t, map[string]string{"username": cfg.Auth.Username, "password": cfg.Auth.Password}))
		if err != nil {
			t.Fatalf("Expected login request to succeed, got %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Success bool `json:"success"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if !body.Success {
			t.Error("Expected configured admin to log in")
		}
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(ShutdownTimeout):
		t.Fatal("Timed out waiting for shutdown")
	}
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(data)
}
