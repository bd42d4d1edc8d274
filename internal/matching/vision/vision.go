// Package vision — перцептивное сравнение картинок товаров.
// Сигнал опциональный: любой отказ сети/декодера деградирует пару до
// "unavailable" и никогда не валит весь прогон.
package vision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"match-service/internal/apperr"
	"match-service/internal/matching/model"
)

const hashBits = 64 // pHash 8x8 DCT

// Config — лимиты фетчера: не душим хосты картинок и не висим на таймаутах.
type Config struct {
	Concurrency  int64         // одновременных загрузок
	Timeout      time.Duration // на одну загрузку
	RatePerSec   float64       // суммарный rps по хостам
	MaxBodyBytes int64
}

func DefaultConfig() Config {
	return Config{
		Concurrency:  8,
		Timeout:      5 * time.Second,
		RatePerSec:   20,
		MaxBodyBytes: 10 << 20,
	}
}

type Scorer struct {
	client  *http.Client
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	cfg     Config
	log     zerolog.Logger

	mu    sync.Mutex
	cache map[string]*goimagehash.ImageHash // url → hash, живёт один батч
}

func NewScorer(cfg Config, logger zerolog.Logger) *Scorer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = DefaultConfig().RatePerSec
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	return &Scorer{
		client:  &http.Client{Timeout: cfg.Timeout},
		sem:     semaphore.NewWeighted(cfg.Concurrency),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), int(cfg.Concurrency)),
		cfg:     cfg,
		log:     logger,
		cache:   make(map[string]*goimagehash.ImageHash),
	}
}

// ResetCache — дропнуть кэш хэшей между батчами (снапшот мог смениться).
func (s *Scorer) ResetCache() {
	s.mu.Lock()
	s.cache = make(map[string]*goimagehash.ImageHash)
	s.mu.Unlock()
}

// Similarity — 1 − hamming/64 для пары URL. Недоступная сторона →
// VisualResult{Available:false}, без ошибки наружу.
func (s *Scorer) Similarity(ctx context.Context, urlA, urlB string) model.VisualResult {
	ha, err := s.hash(ctx, urlA)
	if err != nil {
		s.log.Debug().Err(err).Str("url", urlA).Msg("visual signal degraded")
		return model.VisualResult{}
	}
	hb, err := s.hash(ctx, urlB)
	if err != nil {
		s.log.Debug().Err(err).Str("url", urlB).Msg("visual signal degraded")
		return model.VisualResult{}
	}
	dist, err := ha.Distance(hb)
	if err != nil {
		s.log.Debug().Err(err).Msg("hash distance")
		return model.VisualResult{}
	}
	return model.VisualResult{Available: true, Score: similarityFromDistance(dist)}
}

func similarityFromDistance(hamming int) float64 {
	return 1 - float64(hamming)/float64(hashBits)
}

// hash — pHash по URL с кэшем. Все отказы — apperr.Transient: локальные
// и ретраябельные, один сигнал одной пары.
func (s *Scorer) hash(ctx context.Context, url string) (*goimagehash.ImageHash, error) {
	if url == "" {
		return nil, apperr.Transient("visual", fmt.Errorf("no image url"))
	}
	s.mu.Lock()
	if h, ok := s.cache[url]; ok {
		s.mu.Unlock()
		return h, nil
	}
	s.mu.Unlock()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, apperr.Transient("visual", err)
	}
	defer s.sem.Release(1)
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, apperr.Transient("visual", err)
	}

	fctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Transient("visual", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.Transient("visual", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Transient("visual", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode))
	}

	img, err := imaging.Decode(io.LimitReader(resp.Body, s.cfg.MaxBodyBytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Transient("visual", fmt.Errorf("decode %s: %w", url, err))
	}
	// pHash устойчив к масштабу/сжатию; даунскейлим заранее, чтобы не
	// гонять DCT по мегапиксельным оригиналам
	img = imaging.Resize(img, 256, 256, imaging.Lanczos)

	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, apperr.Transient("visual", err)
	}

	s.mu.Lock()
	s.cache[url] = h
	s.mu.Unlock()
	return h, nil
}
