package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"janani-health/internal/advisory"
	"janani-health/internal/app"
	"janani-health/internal/callflow"
	"janani-health/internal/clinical"
	"janani-health/internal/config"
	"janani-health/internal/core"
	httpserver "janani-health/internal/http"
	"janani-health/internal/scheduler"
	"janani-health/internal/speech"
	"janani-health/internal/telephony"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := config.NewLogger(cfg.LogDir, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, notifier, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalw("failed to open store", "driver", cfg.StoreDriver, "error", err)
	}
	defer store.Close()

	rdb, err := config.NewRedis(ctx, cfg)
	if err != nil {
		logger.Fatalw("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
	}
	if rdb == nil {
		logger.Infow("REDIS_ADDR not set, keeping dedup and clips in process")
	} else {
		defer rdb.Close()
	}
	clips := app.NewClips(cfg, rdb)

	llmClient := app.NewLLM(cfg)
	speechClient, err := speech.NewClient(cfg.SpeechAPIKey, cfg.SpeechBaseURL, cfg.STTModel, cfg.TTSModel, cfg.TTSSpeaker, cfg.StageTimeout())
	if err != nil {
		logger.Fatalw("failed to construct speech client", "error", err)
	}
	advisor, err := advisory.NewClient(cfg.AdvisoryURL, cfg.StageTimeout())
	if err != nil {
		logger.Fatalw("failed to construct advisory client", "error", err)
	}

	pipeline := &core.Pipeline{
		Fetcher:      telephony.NewFetcher(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.StageTimeout()),
		Transcriber:  speechClient,
		Translator:   speechClient,
		Advice:       core.NewAdviceService(advisor, cfg.PatientContext),
		Extractor:    clinical.NewLLMExtractor(llmClient),
		Synthesizer:  speechClient,
		Clips:        clips,
		Store:        store,
		LLM:          llmClient,
		Log:          logger,
		StageTimeout: cfg.StageTimeout(),
		Budget:       cfg.TurnBudget(),
	}

	ctrl := callflow.Config{
		Pipeline:      pipeline,
		Dedup:         app.NewDedup(cfg, rdb),
		BaseURL:       cfg.PublicBaseURL,
		MaxNoInput:    cfg.MaxNoInputRetries,
		CallBackDelay: cfg.CallBackDelay(),
		Log:           logger,
	}
	if caller, err := app.NewCaller(cfg); err != nil {
		logger.Warnw("outbound calls disabled", "error", err)
	} else {
		ctrl.Caller = caller
	}
	calls := callflow.New(ctrl)

	summaries, err := app.NewSummaryRunner(cfg, store, llmClient, logger)
	if err != nil {
		logger.Fatalw("failed to construct summary runner", "error", err)
	}
	loc, _ := cfg.Location()
	sched, err := scheduler.New(summaries, loc, logger)
	if err != nil {
		logger.Fatalw("failed to schedule summaries", "error", err)
	}
	sched.Start()

	var validator *telephony.Validator
	if cfg.TwilioValidateSignature {
		validator = telephony.NewValidator(cfg.TwilioAuthToken)
	}

	srv := httpserver.NewServer(httpserver.Server{
		Calls:     calls,
		Store:     store,
		Notifier:  notifier,
		Clips:     clips,
		Summaries: summaries,
		Validator: validator,
		BaseURL:   cfg.PublicBaseURL,
		Log:       logger,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infow("listening", "addr", httpSrv.Addr, "store", cfg.StoreDriver, "publicBaseURL", cfg.PublicBaseURL)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("graceful shutdown failed", "error", err)
	}
	sched.Stop()
	calls.Wait()
}
