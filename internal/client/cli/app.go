package cli

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/client/client"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/client/config"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/client/services"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/connectivity"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/cryptox"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/logging"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/remote"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/store"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/syncqueue"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/webcache"

	_ "modernc.org/sqlite"
)

// App wires the client together: local database, crypto session, store,
// sync queue, connectivity monitor, and the versioned web cache.
type App struct {
	config       *config.Config
	repos        *client.Repositories
	session      *cryptox.Session
	records      *store.Store
	authService  services.AuthService
	entryService services.EntryService
	monitor      *connectivity.Monitor
	scheduler    *syncqueue.Scheduler
	queue        *syncqueue.Queue
	proxy        *webcache.Proxy
	log          logging.Logger
	reader       *bufio.Reader
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	repos, err := client.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	apiClient := remote.NewHTTPClient(c.RemoteEndpointAddr, c.RequestTimeout)
	session := cryptox.NewSession()

	records := store.New(repos.Records, session, log,
		store.WithSensitiveTables(store.TablePainEntries))
	if err := records.Rebuild(ctx); err != nil {
		return nil, err
	}

	monitor := connectivity.NewMonitor(apiClient, c.OnlineCheckInterval, log)

	queue := syncqueue.New(repos.Queue, records, apiClient, monitor, log,
		syncqueue.WithBackoff(syncqueue.Backoff{
			Base:          c.BackoffBase,
			Cap:           c.BackoffCap,
			JitterPercent: c.BackoffJitterPercent,
		}),
		syncqueue.WithAttemptTimeout(c.AttemptTimeout))
	if err := queue.Recover(ctx); err != nil {
		return nil, err
	}

	proxy := webcache.NewProxy(http.DefaultTransport, repos.Cache, log)
	if m, err := webcache.LoadManifest(c.ManifestPath); err != nil {
		log.Warn(ctx, "asset manifest not loaded, proxy passes through", "error", err)
	} else if err := proxy.Resume(ctx, m); err != nil {
		return nil, err
	}

	return &App{
		config:       c,
		repos:        repos,
		session:      session,
		records:      records,
		authService:  services.NewAuthService(apiClient, repos.Metadata, c.KDFIterations),
		entryService: services.NewEntryService(records, queue),
		monitor:      monitor,
		scheduler:    syncqueue.NewScheduler(queue, monitor, c.DrainInterval, log),
		queue:        queue,
		proxy:        proxy,
		log:          log,
		reader:       bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) isLoggedIn() bool {
	return a.session.Unlocked()
}

// CacheTransport exposes the cache-aware RoundTripper for embedding callers
// (export/report tooling) that fetch assets through the client.
func (a *App) CacheTransport() http.RoundTripper {
	return a.proxy
}

// Run starts the background connectivity watcher and drain scheduler, then
// blocks in the REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.repos.Close()
	defer a.session.Lock()

	go a.monitor.Run(ctx)
	go a.scheduler.Run(ctx)

	a.Root(ctx)
}
