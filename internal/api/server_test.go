package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/CodAressss/orders-batch-service/internal/ingest"
	"github.com/CodAressss/orders-batch-service/internal/storage"
)

var errDatabaseDown = errors.New("database down")

// fakeProcessor returns a canned result or error and records its inputs.
type fakeProcessor struct {
	result *ingest.BatchResult
	err    error

	calls  int
	key    string
	digest string
	rows   []ingest.Row
}

func (f *fakeProcessor) Process(
	_ context.Context,
	key, digest string,
	rows []ingest.Row,
) (*ingest.BatchResult, error) {
	f.calls++
	f.key = key
	f.digest = digest
	f.rows = rows

	if f.err != nil {
		return nil, f.err
	}

	return f.result, nil
}

// fakeOrderReader serves orders from memory.
type fakeOrderReader struct {
	orders     []*storage.Order
	err        error
	lastFilter storage.OrderFilter
}

func (f *fakeOrderReader) FindByNumber(_ context.Context, orderNumber string) (*storage.Order, error) {
	if f.err != nil {
		return nil, f.err
	}

	for _, order := range f.orders {
		if order.OrderNumber == orderNumber {
			return order, nil
		}
	}

	return nil, storage.ErrOrderNotFound
}

func (f *fakeOrderReader) ListOrders(_ context.Context, filter storage.OrderFilter) ([]*storage.Order, error) {
	f.lastFilter = filter

	if f.err != nil {
		return nil, f.err
	}

	return f.orders, nil
}

// fakeBatchReader serves batch loads from memory.
type fakeBatchReader struct {
	batches map[uuid.UUID]*ingest.BatchLoad
	err     error
}

func (f *fakeBatchReader) FindByID(_ context.Context, id uuid.UUID) (*ingest.BatchLoad, error) {
	if f.err != nil {
		return nil, f.err
	}

	batch, ok := f.batches[id]
	if !ok {
		return nil, ingest.ErrBatchNotFound
	}

	return batch, nil
}

// fakeUserReader serves one user account.
type fakeUserReader struct {
	user *storage.User
	err  error
}

func (f *fakeUserReader) FindByUsername(_ context.Context, username string) (*storage.User, error) {
	if f.err != nil {
		return nil, f.err
	}

	if f.user == nil || f.user.Username != username {
		return nil, storage.ErrUserNotFound
	}

	return f.user, nil
}

// fakeHealthChecker reports a configurable health state.
type fakeHealthChecker struct {
	err error
}

func (f *fakeHealthChecker) HealthCheck(context.Context) error {
	return f.err
}

// newTestServer builds a server with the given dependencies and returns it
// alongside its bare route mux (no middleware) for direct handler testing.
func newTestServer(t *testing.T, deps Dependencies) (*Server, *http.ServeMux) {
	t.Helper()

	server := &Server{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		config: &ServerConfig{
			Port:            8080,
			Host:            "127.0.0.1",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
			MaxUploadSize:   defaultMaxUploadSize,
		},
		health:      deps.Health,
		processor:   deps.Processor,
		orders:      deps.Orders,
		batches:     deps.Batches,
		users:       deps.Users,
		tokens:      deps.Tokens,
		publisher:   deps.Publisher,
		rateLimiter: deps.RateLimiter,
	}

	mux := http.NewServeMux()
	server.setupRoutes(mux)

	return server, mux
}

func TestServerConfig_Validate(t *testing.T) {
	valid := func() *ServerConfig {
		return &ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
			MaxUploadSize:   1024,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr error
	}{
		{"zero port", func(c *ServerConfig) { c.Port = 0 }, ErrInvalidPort},
		{"port too large", func(c *ServerConfig) { c.Port = 70000 }, ErrInvalidPort},
		{"empty host", func(c *ServerConfig) { c.Host = "" }, ErrEmptyHost},
		{"zero read timeout", func(c *ServerConfig) { c.ReadTimeout = 0 }, ErrInvalidReadTimeout},
		{"zero write timeout", func(c *ServerConfig) { c.WriteTimeout = 0 }, ErrInvalidWriteTimeout},
		{"zero shutdown timeout", func(c *ServerConfig) { c.ShutdownTimeout = 0 }, ErrInvalidShutdownTimeout},
		{"zero upload size", func(c *ServerConfig) { c.MaxUploadSize = 0 }, ErrInvalidMaxUploadSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
