package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gigtracker/internal/config"
	"gigtracker/internal/ports"
)

type stubPublisher struct {
	closed bool
}

func (p *stubPublisher) PublishGigEvent(context.Context, ports.GigEvent) error { return nil }

func (p *stubPublisher) Close() error {
	p.closed = true
	return nil
}

func TestFromAppConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataBackend = "memory"
	cfg.AMQPURL = "amqp://localhost/"

	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if got.Type != MemoryBackend || got.AMQPURL != cfg.AMQPURL || got.AMQPQueue != "gig_events" {
		t.Errorf("FromAppConfig() = %+v", got)
	}

	cfg.DataBackend = "sheets"
	if _, err := FromAppConfig(cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("memory without amqp", func(t *testing.T) {
		res, err := NewFactory(nil).Create(ctx, Config{Type: MemoryBackend})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if res.Store == nil || res.Publisher != nil {
			t.Errorf("result = %+v", res)
		}
		if err := res.Store.Ping(ctx); err != nil {
			t.Errorf("Ping() = %v", err)
		}
		if err := res.Cleanup(); err != nil {
			t.Errorf("Cleanup() = %v", err)
		}
	})

	t.Run("sqlite with publisher", func(t *testing.T) {
		pub := &stubPublisher{}
		f := NewFactory(nil)
		f.dialAMQP = func(string, string, string) (Publisher, error) { return pub, nil }

		res, err := f.Create(ctx, Config{
			Type:         SQLiteBackend,
			SQLiteDBPath: filepath.Join(t.TempDir(), "gigs.db"),
			AMQPURL:      "amqp://localhost/",
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if res.Publisher != pub {
			t.Error("publisher not wired")
		}
		if err := res.Store.Ping(ctx); err != nil {
			t.Errorf("Ping() = %v", err)
		}
		if err := res.Cleanup(); err != nil {
			t.Errorf("Cleanup() = %v", err)
		}
		if !pub.closed {
			t.Error("publisher not closed by cleanup")
		}
	})

	t.Run("unreachable broker is skipped", func(t *testing.T) {
		f := NewFactory(nil)
		f.dialAMQP = func(string, string, string) (Publisher, error) { return nil, errors.New("connection refused") }

		res, err := f.Create(ctx, Config{Type: MemoryBackend, AMQPURL: "amqp://localhost/"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if res.Publisher != nil {
			t.Error("publisher should be nil")
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		if _, err := NewFactory(nil).Create(ctx, Config{Type: SQLiteBackend}); err == nil {
			t.Error("expected error")
		}
	})
}
