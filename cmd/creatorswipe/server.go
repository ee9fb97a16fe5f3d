package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/creatorswipe/internal/api"
	"github.com/kalambet/creatorswipe/internal/catalog"
	"github.com/kalambet/creatorswipe/internal/config"
	"github.com/kalambet/creatorswipe/internal/feed"
	"github.com/kalambet/creatorswipe/internal/matcher"
	"github.com/kalambet/creatorswipe/internal/profile"
	"github.com/kalambet/creatorswipe/internal/relay"
	"github.com/kalambet/creatorswipe/internal/session"
	"github.com/kalambet/creatorswipe/internal/storage"
	"github.com/kalambet/creatorswipe/internal/swipe"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the creatorswipe server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running creatorswipe server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show creatorswipe server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "creatorswipe.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// profileStore is the persisted profile store selected by storage.profile_driver.
type profileStore interface {
	profile.RecordStore
	Close() error
}

func openProfileStore(ctx context.Context, cfg config.StorageConfig, local *storage.Store) (profileStore, error) {
	if cfg.ProfileDriver != "postgres" {
		return nopCloser{local}, nil
	}
	pg, err := storage.OpenPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres profile store: %w", err)
	}
	return pg, nil
}

// nopCloser keeps the SQLite store open when it doubles as the profile store;
// it is closed separately.
type nopCloser struct{ *storage.Store }

func (nopCloser) Close() error { return nil }

func runServer() error {
	fmt.Fprintf(os.Stderr, "creatorswipe version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	baseURL := serverURL(cfg.Server.Host, cfg.Server.Port)
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(baseURL + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("creatorswipe is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("creatorswipe is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	profiles, err := openProfileStore(ctx, cfg.Storage, store)
	if err != nil {
		return err
	}
	defer profiles.Close()

	seed, err := catalog.LoadSeed(cfg.Feed.SeedFile)
	if err != nil {
		return fmt.Errorf("loading seed profiles: %w", err)
	}
	cat := catalog.New(seed, profiles)

	// Without a remote listing, sessions read the catalog in-process.
	var fetcher feed.Fetcher = feed.FetcherFunc(func(context.Context) ([]profile.Record, error) {
		return cat.Profiles()
	})
	if cfg.Feed.ListingURL != "" {
		fetcher = feed.NewHTTPFetcher(cfg.Feed.ListingURL, &http.Client{Timeout: cfg.Feed.FetchTimeout})
	}
	source := feed.NewSource(fetcher, cfg.Feed.FetchTimeout).WithLogger(logger)

	policy, err := swipe.ParseEndPolicy(cfg.Swipe.EndPolicy)
	if err != nil {
		return err
	}
	recorder := relay.NewRecorder(store).WithLogger(logger)
	sessions := session.NewManager(source, session.Options{
		TTL: cfg.Session.TTL,
		Max: cfg.Session.Max,
		Engine: []swipe.Option{
			swipe.WithThreshold(cfg.Swipe.VelocityThreshold),
			swipe.WithEndPolicy(policy),
		},
		Sink: recorder.ForSession,
	}).WithLogger(logger)

	publishers := []relay.Publisher{relay.NewLogPublisher(logger)}
	if cfg.Relay.RedisAddr != "" {
		rp, err := relay.NewRedisPublisher(ctx, cfg.Relay.RedisAddr, cfg.Relay.RedisChannel)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rp.Close()
		publishers = append(publishers, rp)
	}
	worker := relay.NewWorker(store, publishers, cfg.Relay.PollInterval).WithLogger(logger)

	var chat matcher.Chat
	if cfg.Matcher.APIKey != "" {
		chat = matcher.NewOpenAIChat(cfg.Matcher.APIKey, cfg.Matcher.BaseURL, cfg.Matcher.Model)
	} else {
		logger.Info("no matcher API key configured, idea matching uses fallback rankings",
			"fallback", cfg.Matcher.UseFallback,
			"hint", config.SecretHint("matcher.api_key"),
		)
	}
	m := matcher.New(chat, matcher.Options{
		UseFallback: cfg.Matcher.UseFallback,
		Seed:        int64(cfg.Matcher.Seed),
	}).WithLogger(logger)

	profileMgr := profile.NewManager(profiles)
	handler := api.NewHandler(api.Deps{
		Catalog:   cat,
		Profiles:  profileMgr,
		Sessions:  sessions,
		Decisions: store,
		Recorder:  recorder,
		Matcher:   m,
		StaticDir: cfg.Server.StaticDir,
		Logger:    logger,
	})

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConns)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "creatorswipe listening on %s\n", addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sessions.Run(gctx)
		return nil
	})
	if cfg.Server.MCPEnabled {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Catalog:   cat,
			Profiles:  profileMgr,
			Matcher:   m,
			Decisions: store,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("creatorswipe is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop creatorswipe (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to creatorswipe (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	baseURL := serverURL(cfg.Server.Host, cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if running {
		c := &apiClient{baseURL: baseURL, httpClient: client}
		if r, err := c.get(context.Background(), "/api/profiles"); err == nil {
			var rs []profile.Record
			if decodeJSON(r, &rs) == nil {
				printStatus("Profiles", "%d", len(rs))
			}
		}
		if r, err := c.get(context.Background(), "/api/decisions?limit=100"); err == nil {
			var page struct {
				Decisions []storage.Decision `json:"decisions"`
			}
			if decodeJSON(r, &page) == nil {
				printStatus("Decisions", "%s", countLabel(len(page.Decisions), 100))
			}
		}
	}

	listing := cfg.Feed.ListingURL
	if listing == "" {
		listing = "built-in catalog"
	}
	printStatus("Listing", "%s", listing)
	printStatus("Profile store", "%s", cfg.Storage.ProfileDriver)
	matcherMode := "model " + cfg.Matcher.Model
	if cfg.Matcher.APIKey == "" {
		matcherMode = "fallback rankings"
	}
	printStatus("Matcher", "%s", matcherMode)
	if cfg.Relay.RedisAddr != "" {
		printStatus("Redis relay", "%s (%s)", cfg.Relay.RedisAddr, cfg.Relay.RedisChannel)
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
