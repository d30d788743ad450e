package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/pribylovaa/campus-sync/internal/apiclient"
	"github.com/pribylovaa/campus-sync/internal/clients"
	"github.com/pribylovaa/campus-sync/internal/clients/interceptors"
	"github.com/pribylovaa/campus-sync/internal/config"
	csynchttp "github.com/pribylovaa/campus-sync/internal/http"
	"github.com/pribylovaa/campus-sync/internal/http/handlers"
	"github.com/pribylovaa/campus-sync/internal/live"
	"github.com/pribylovaa/campus-sync/internal/models"
	"github.com/pribylovaa/campus-sync/internal/repository"
	"github.com/pribylovaa/campus-sync/internal/service"
	"github.com/pribylovaa/campus-sync/internal/storage"
	"github.com/pribylovaa/campus-sync/internal/storage/agefile"
	"github.com/pribylovaa/campus-sync/internal/storage/memory"
	"github.com/pribylovaa/campus-sync/internal/storage/redisstore"
	"github.com/pribylovaa/campus-sync/internal/tokens"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "path to config file")
	pflag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting campus-sync", slog.String("env", cfg.Env))

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	secure, err := openStorage(rootCtx, cfg.Storage)
	if err != nil {
		log.Error("secure_storage_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("secure_storage_ready", slog.String("driver", cfg.Storage.Driver))

	creds := tokens.New(secure)

	transport := clients.NewHTTP(&http.Client{},
		interceptors.ClientWithMetadata(cfg.API.UserAgent),
		interceptors.ClientWithTimeout(cfg.API.RequestTimeout),
		interceptors.ClientLogging(log),
	)

	executor := apiclient.New(transport, creds, apiclient.Options{
		BaseURL:        cfg.API.BaseURL,
		RefreshTimeout: cfg.API.RefreshTimeout,
		Registerer:     prometheus.DefaultRegisterer,
	})

	session := service.NewSession(repository.NewAuth(executor), creds, executor)

	eventsRepo := repository.NewEvents(executor, cfg.Pagination.Size)
	h := &handlers.Handlers{
		Session:  session,
		Discover: service.NewEvents(eventsRepo, models.FilterDate, session),
		Mine:     service.NewEvents(eventsRepo, models.FilterDate, session),
		Chats:    service.NewChats(repository.NewChats(executor, cfg.Pagination.Size), session),
		Profile:  service.NewProfile(repository.NewProfiles(executor), session),
	}

	// Пользовательские данные живут не дольше сессии.
	session.OnSignOut(h.Chats.Clear)
	session.OnSignOut(h.Mine.Reset)
	session.OnSignOut(h.Profile.Clear)

	st := session.Restore(rootCtx)
	log.Info("session_state", slog.String("state", st.State.String()))

	var wg sync.WaitGroup
	if cfg.Live.Enabled {
		consumer := live.New(
			live.NewReader(live.Config{
				Brokers: cfg.Live.Brokers,
				Topic:   cfg.Live.Topic,
				GroupID: cfg.Live.GroupID,
			}),
			h.Chats,
			live.WithGate(func() bool { return session.Snapshot().IsAuthenticated }),
			live.WithRegisterer(prometheus.DefaultRegisterer),
		)

		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := consumer.Run(rootCtx); err != nil {
				log.Error("live_consumer_failed", slog.String("err", err.Error()))
			}
			if err := consumer.Close(); err != nil {
				log.Warn("live_consumer_close_failed", slog.String("err", err.Error()))
			}
		}()
		log.Info("live_updates_enabled", slog.String("topic", cfg.Live.Topic))
	}

	apiHandler := csynchttp.NewRouter(h, csynchttp.Options{
		Logger:  log,
		Timeout: cfg.API.RefreshTimeout + cfg.API.RequestTimeout,
	})

	var ready int32 // 0 — not ready; 1 — ready

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", apiHandler)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)
	log.Info("campus_sync_ready")

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
		rootCancel()
	}

	atomic.StoreInt32(&ready, 0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	wg.Wait()
	h.Chats.Wait()

	if c, ok := secure.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn("secure_storage_close_failed", slog.String("err", err.Error()))
		}
	}

	log.Info("service_stopped")
}

// openStorage выбирает защищённое хранилище по драйверу.
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.SecureStorage, error) {
	switch cfg.Driver {
	case config.StorageAge:
		return agefile.New(cfg.Path, cfg.IdentityPath)
	case config.StorageRedis:
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		return redisstore.New(pingCtx, cfg.RedisURL, cfg.RedisKey)
	default:
		return memory.New(), nil
	}
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
