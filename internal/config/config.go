package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host         string
	Port         int
	AllowOrigins []string
	LogLevel     string
	LogFile      string
	MaxUploadMB  int

	// хранилище: postgres://... в проде, путь к файлу/file::memory: для sqlite
	DBDsn string

	// подбор
	MatchWorkers int

	// фетчер картинок
	ImgConcurrency int
	ImgTimeout     time.Duration
	ImgRPS         float64

	// путь к словарю сегментации (по слову на строку), опционален
	VocabFile string
}

func Load() Config {
	port, _ := strconv.Atoi(getenv("PORT", "8082"))
	mb, _ := strconv.Atoi(getenv("MAX_UPLOAD_MB", "256"))
	origins := strings.Split(getenv("ALLOW_ORIGINS", "*"), ",")
	workers, _ := strconv.Atoi(getenv("MATCH_WORKERS", "4"))
	imgConc, _ := strconv.Atoi(getenv("IMG_FETCH_CONCURRENCY", "8"))
	imgTimeoutMS, _ := strconv.Atoi(getenv("IMG_FETCH_TIMEOUT_MS", "5000"))
	imgRPS, _ := strconv.ParseFloat(getenv("IMG_FETCH_RPS", "20"), 64)
	return Config{
		Host:           getenv("HOST", "127.0.0.1"),
		Port:           port,
		AllowOrigins:   origins,
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFile:        getenv("LOG_FILE", "logs/match-service.log"),
		MaxUploadMB:    mb,
		DBDsn:          getenv("DB_DSN", "match-service.db"),
		MatchWorkers:   workers,
		ImgConcurrency: imgConc,
		ImgTimeout:     time.Duration(imgTimeoutMS) * time.Millisecond,
		ImgRPS:         imgRPS,
		VocabFile:      getenv("VOCAB_FILE", ""),
	}
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
