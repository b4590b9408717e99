package main

import (
	"context"
	"fmt"
	"log/slog"
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

	"github.com/kalambet/freevibes/internal/api"
	"github.com/kalambet/freevibes/internal/config"
	"github.com/kalambet/freevibes/internal/dashboard"
	"github.com/kalambet/freevibes/internal/gist"
	"github.com/kalambet/freevibes/internal/rss"
	"github.com/kalambet/freevibes/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the freevibes server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running freevibes server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show freevibes system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "freevibes.pid")
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

func runServer() error {
	fmt.Fprintf(os.Stderr, "freevibes version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}

	// Refuse to start a second instance. The health endpoint answers only
	// when a live server holds the port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("freevibes is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("freevibes is already running on port %d", cfg.Server.Port)
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

	remote := gist.New(cfg.Remote.APIBaseURL, store)
	svc := dashboard.New(remote, store)

	// Resume remote sync from a configured or previously stored token. A
	// failed login is not fatal: the dashboard works from the local cache.
	loginToken := cfg.Remote.GitHubToken
	if loginToken == "" && remote.HasToken() {
		loginToken = remote.Token()
	}
	if loginToken != "" {
		if err := svc.LoginWithRemoteToken(ctx, loginToken); err != nil {
			slog.Warn("remote login failed, continuing with local data", "error", err)
		} else {
			slog.Info("remote sync enabled", "url", svc.RemoteDocumentURL())
		}
	}

	doc := svc.LoadData(ctx)
	slog.Info("dashboard loaded", "tabs", len(doc.Tabs), "widgets", len(doc.Widgets))

	fetcher := rss.NewFetcherWithTTL(store, time.Duration(cfg.RSS.CacheTTLMinutes)*time.Minute)
	go refreshFeeds(ctx, svc, fetcher, time.Duration(cfg.RSS.RefreshMinutes)*time.Minute)

	handler := api.NewHandler(api.Deps{
		Service: svc,
		Feeds:   fetcher,
		Token:   apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server over stdio, for assistants driving the dashboard.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Service: svc,
		Feeds:   fetcher,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "freevibes listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// refreshFeeds warms the feed cache at startup and on an interval so widgets
// render from cache instead of blocking on fetches.
func refreshFeeds(ctx context.Context, svc *dashboard.Service, fetcher *rss.Fetcher, interval time.Duration) {
	refresh := func() {
		doc, ok := svc.Data()
		if !ok {
			return
		}
		var urls []string
		for _, w := range doc.Widgets {
			if w.FeedURL != "" {
				urls = append(urls, w.FeedURL)
			}
		}
		fetcher.RefreshAll(ctx, urls)
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
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
		printError("freevibes is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop freevibes (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to freevibes (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if running {
		if apiCli, err := newAPIClient(); err == nil {
			if remoteResp, err := apiCli.get(ctx, "/remote"); err == nil {
				var remote struct {
					Enabled bool   `json:"enabled"`
					URL     string `json:"url"`
				}
				if decodeJSON(remoteResp, &remote) == nil {
					if remote.Enabled {
						printStatus("Remote sync", "enabled (%s)", remote.URL)
					} else {
						printStatus("Remote sync", "disabled")
					}
				}
			}
			if dataResp, err := apiCli.get(ctx, "/data"); err == nil {
				var doc struct {
					Tabs    []any `json:"tabs"`
					Widgets []any `json:"widgets"`
				}
				if decodeJSON(dataResp, &doc) == nil {
					printStatus("Tabs", "%d", len(doc.Tabs))
					printStatus("Widgets", "%d", len(doc.Widgets))
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
