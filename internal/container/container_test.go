package container

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/FACorreiaa/go-portal-shell/app/observability/metrics"
	"github.com/FACorreiaa/go-portal-shell/config"
	"github.com/FACorreiaa/go-portal-shell/internal/preference"
	"github.com/FACorreiaa/go-portal-shell/internal/router"
	"github.com/FACorreiaa/go-portal-shell/internal/session"
)

func testConfig(driver string) *config.Config {
	var cfg config.Config
	cfg.Server.Port = "0"
	cfg.Storage.Driver = driver
	return &cfg
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestStatePersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.DriverSQLite)
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "shell.db")

	c, err := NewContainer(ctx, cfg, quietLogger())
	require.NoError(t, err)
	require.NoError(t, c.Session.Login("tok", session.UserProfile{Username: "ana", Roles: []string{"ADMIN"}}))
	_, err = c.Theme.Set("dark")
	require.NoError(t, err)
	require.NoError(t, c.Close(ctx))

	c, err = NewContainer(ctx, cfg, quietLogger())
	require.NoError(t, err)
	defer c.Close(ctx)

	assert.True(t, c.Session.IsAuthenticated())
	u, ok := c.Session.User()
	require.True(t, ok)
	assert.True(t, u.HasRole("ADMIN"))
	assert.Equal(t, preference.ThemeDark, c.Theme.Get())
	assert.Equal(t, preference.LanguagePT, c.Language.Get())
}

func TestUnopenableSQLiteDegradesToMemoryOnly(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.DriverSQLite)
	cfg.Storage.SQLite.Path = filepath.Join(t.TempDir(), "missing", "dir", "shell.db")

	c, err := NewContainer(ctx, cfg, quietLogger())
	require.NoError(t, err)
	defer c.Close(ctx)

	require.NoError(t, c.Session.Login("tok", session.UserProfile{Username: "ana"}))
	assert.True(t, c.Session.IsAuthenticated())
}

func TestRoutesAndMetricsWired(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	m, err := metrics.New(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	require.NoError(t, err)

	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	c, err := NewContainer(ctx, testConfig(config.DriverMemory), quietLogger(), WithMetrics(m, metricsHandler))
	require.NoError(t, err)
	defer c.Close(ctx)

	assert.ElementsMatch(t, c.Table.Modules(), c.Registry.Keys())

	rec := httptest.NewRecorder()
	c.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rec.Body.String())

	rec = httptest.NewRecorder()
	c.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/agendamentos", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestPreload(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.DriverNone)
	cfg.Modules.Preload = []string{router.ModuleHome, router.ModuleContents}

	c, err := NewContainer(ctx, cfg, quietLogger())
	require.NoError(t, err)
	defer c.Close(ctx)

	require.NoError(t, c.Preload(ctx))
	assert.Equal(t, router.Loaded, c.Registry.State(router.ModuleHome).State)
	assert.Equal(t, router.Loaded, c.Registry.State(router.ModuleContents).State)
	assert.Equal(t, router.NotRequested, c.Registry.State(router.ModuleAdmin).State)
}

func TestUnknownDriver(t *testing.T) {
	_, err := NewContainer(context.Background(), testConfig("redis"), quietLogger())
	assert.ErrorContains(t, err, "unknown storage driver")
}
