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

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/recallbot/internal/api"
	"github.com/kalambet/recallbot/internal/config"
	"github.com/kalambet/recallbot/internal/manager"
	"github.com/kalambet/recallbot/internal/scheduler"
	"github.com/kalambet/recallbot/internal/snapshot"
	"github.com/kalambet/recallbot/internal/storage"
	"github.com/kalambet/recallbot/internal/telegram"
	"github.com/kalambet/recallbot/internal/worker"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bot (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bot status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "recallbot.pid")
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

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

// loadScheduler restores the saved scheduler state, or starts a fresh one
// when there is none or it cannot be used, then applies jobsPerHour.
func loadScheduler(fs afero.Fs, path string, jobsPerHour int, logger *slog.Logger) *scheduler.Scheduler {
	var sched *scheduler.Scheduler

	st, err := snapshot.Load(fs, path)
	switch {
	case err == nil:
		sched = scheduler.Restore(st, scheduler.WithLogger(logger))
		logger.Info("scheduler state restored", "path", path, "last_update", st.LastUpdate)
	case errors.Is(err, snapshot.ErrNotFound):
		logger.Info("no saved scheduler state, starting fresh", "path", path)
	case errors.Is(err, snapshot.ErrIncompatibleVersion):
		logger.Warn("discarding incompatible scheduler state", "path", path, "error", err)
	default:
		logger.Warn("could not read scheduler state, starting fresh", "path", path, "error", err)
	}
	if sched == nil {
		sched = scheduler.New(jobsPerHour, scheduler.WithLogger(logger))
	}

	if err := sched.SetNumJobsPerHour(jobsPerHour); err != nil {
		logger.Warn("keeping saved jobs per hour", "jobs_per_hour", sched.NumJobsPerHour(), "error", err)
	}
	return sched
}

// newSaveFunc persists the scheduler state to path. It must only be called
// from the goroutine that owns sched.
func newSaveFunc(fs afero.Fs, path string, sched *scheduler.Scheduler) worker.SaveFunc {
	return func() error {
		return snapshot.Save(fs, path, sched.State())
	}
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "recallbot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		if cfg.Telegram.Token == "" {
			printWarning("no Telegram bot token found: %s", config.MissingTokenHint())
		}
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))
	logger := slog.Default()

	pidPath := pidFilePath(cfg.Storage.DataDir)
	if pid, err := readPIDFile(pidPath); err == nil && pid != os.Getpid() && processAlive(pid) {
		printWarning("recallbot is already running (PID %d)", pid)
		return fmt.Errorf("bot already running (PID %d)", pid)
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

	fs := afero.NewOsFs()
	statePath := snapshot.Path(cfg.Storage.DataDir)
	sched := loadScheduler(fs, statePath, cfg.Scheduler.JobsPerHour, logger)

	messenger, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		ChatID:      cfg.Telegram.ChatID,
		PollTimeout: cfg.Telegram.PollTimeoutDuration(),
		SendTimeout: cfg.Telegram.SendTimeoutDuration(),
	}, logger)
	if err != nil {
		return err
	}

	mgr := manager.New(manager.Deps{
		Store:     store,
		Messenger: messenger,
		Scheduler: sched,
		Config:    manager.DefaultConfig(),
		Logger:    logger,
	})

	save := newSaveFunc(fs, statePath, sched)
	if err := save(); err != nil {
		logger.Error("saving initial scheduler state failed", "path", statePath, "error", err)
	}

	w, err := worker.NewWorker(mgr, save, sched.NumJobsPerHour(), cfg.Scheduler.TickDuration())
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})

	if cfg.Admin.Enabled {
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.Admin.Port)
		srv := &http.Server{
			Addr: addr,
			Handler: api.NewAdminHandler(api.AdminDeps{
				Store:  store,
				Token:  cfg.Admin.Token,
				Logger: logger,
			}),
			BaseContext: func(_ net.Listener) context.Context {
				return gctx
			},
		}
		g.Go(func() error {
			logger.Info("admin API listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	fmt.Fprintln(os.Stderr, "shut down")
	return err
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
		printError("recallbot is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop recallbot (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to recallbot (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	if pid, err := readPIDFile(pidFilePath(cfg.Storage.DataDir)); err == nil && processAlive(pid) {
		printStatus("Bot", "running (PID %d)", pid)
	} else {
		printStatus("Bot", "stopped")
	}

	if cfg.Admin.Enabled {
		client := &apiClient{
			baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Admin.Port),
			token:      cfg.Admin.Token,
			httpClient: &http.Client{Timeout: 2 * time.Second},
		}
		if n, err := fetchCount(ctx, client); err != nil {
			printStatus("Admin API", "unreachable on port %d", cfg.Admin.Port)
		} else {
			printStatus("Admin API", "running on port %d", cfg.Admin.Port)
			printStatus("Flashcards", "%d", n)
		}
	} else {
		printStatus("Admin API", "disabled")
	}

	printStatus("Chat", "%d", cfg.Telegram.ChatID)
	printStatus("Jobs per hour", "%d", cfg.Scheduler.JobsPerHour)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	if err := config.Validate(cfg); err != nil {
		printWarning("%v", err)
	}
	return nil
}

func fetchCount(ctx context.Context, c *apiClient) (int, error) {
	resp, err := c.get(ctx, "/stats")
	if err != nil {
		return 0, err
	}
	var stats api.StatsResponse
	if err := decodeJSON(resp, &stats); err != nil {
		return 0, err
	}
	return stats.Count, nil
}
