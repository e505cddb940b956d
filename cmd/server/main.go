package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sevenatila/dashdesenrolado/internal/config"
	"github.com/Sevenatila/dashdesenrolado/internal/httpx"
	"github.com/Sevenatila/dashdesenrolado/internal/metrics"
	"github.com/Sevenatila/dashdesenrolado/internal/source"
	"github.com/Sevenatila/dashdesenrolado/internal/store"
	"github.com/Sevenatila/dashdesenrolado/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	st, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("open store", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer st.Close()

	cl := source.NewHTTPClient(cfg.HTTPTimeout)

	var src sync.Sources
	if cfg.MetaEnabled() {
		src.Ads = source.NewMetaClient(cl, cfg.MetaAccessToken, cfg.MetaAdAccountID)
	} else {
		logger.Warn("ad-spend source disabled: META_ACCESS_TOKEN / META_AD_ACCOUNT_ID not set")
	}
	if cfg.VTurbEnabled() {
		src.Video = source.NewVTurbClient(cl, cfg.VTurbAPIKey, cfg.VTurbURL, cfg.Timezone.String())
	} else {
		logger.Warn("engagement source disabled: VTURB_API_KEY not set")
	}
	if cfg.UTMifyEnabled() {
		src.Orders = source.NewUTMifyClient(cl, cfg.UTMifyToken, cfg.UTMifyURL)
	} else {
		logger.Warn("order polling disabled: UTMIFY_API_TOKEN not set")
	}

	engine := sync.NewService(st, st, src, logger, cfg.Timezone)
	mSvc := metrics.NewService(st)

	r := httpx.NewRouter(httpx.Deps{
		Log:          logger,
		Engine:       engine,
		Metrics:      mSvc,
		Sales:        st,
		Video:        src.Video,
		KiwifySecret: cfg.KiwifySecret,
		SyncToken:    cfg.SyncToken,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", slog.String("err", err.Error()))
	}
}
