package main

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/rs/zerolog"

	"match-service/internal/config"
	"match-service/internal/groups"
	"match-service/internal/importer"
	"match-service/internal/matching"
	"match-service/internal/matching/engine"
	"match-service/internal/matching/handler"
	"match-service/internal/matching/text"
	"match-service/internal/matching/vision"
	"match-service/internal/storage"
	serverhttp "match-service/server/http"
)

func main() {
	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		runtime.GOMAXPROCS(runtime.NumCPU())
	}

	cfg := config.Load()
	logger := config.SetupLogger(cfg)

	db, err := storage.Open(cfg.DBDsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	if err := storage.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	store := storage.New(db)

	norm := text.NewNormalizer(text.DefaultStopList(), loadVocab(cfg.VocabFile, logger))
	vis := vision.NewScorer(vision.Config{
		Concurrency: int64(cfg.ImgConcurrency),
		Timeout:     cfg.ImgTimeout,
		RatePerSec:  cfg.ImgRPS,
	}, logger)
	eng := engine.New(norm, vis, logger)

	d := handler.Deps{
		Cfg:      cfg,
		Log:      logger,
		Importer: importer.New(store, logger),
		Matcher:  matching.NewService(store, eng, cfg.MatchWorkers, logger),
		Groups:   groups.NewService(store, logger),
		Store:    store,
	}

	r := serverhttp.NewRouter(d)

	srv := &http.Server{Addr: cfg.Addr(), Handler: r}
	logger.Info().Str("addr", cfg.Addr()).Msg("server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info().Msg("bye")
}

// loadVocab — словарь сегментации, по слову на строку. Без файла движок
// живёт на посимвольной сегментации.
func loadVocab(path string, logger zerolog.Logger) *text.Vocab {
	if path == "" {
		return text.NewVocab(nil)
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("vocab file not loaded")
		return text.NewVocab(nil)
	}
	defer f.Close()
	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if w := strings.TrimSpace(sc.Text()); w != "" {
			words = append(words, w)
		}
	}
	logger.Info().Int("words", len(words)).Msg("segmentation vocab loaded")
	return text.NewVocab(words)
}
