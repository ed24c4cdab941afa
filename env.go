package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const DEFAULT_HOST = "0.0.0.0"
const DEFAULT_PORT = "5000"
const DEFAULT_ALLOWED_ORIGIN = "https://tensileelongationdeploy.vercel.app"
const DEFAULT_PHASE_MAP_FOLDER = "phase_map_img"
const DEFAULT_KAM_FOLDER = "KAM_img"
const DEFAULT_OUTPUT_FOLDER = "morphed_outputs"
const DEFAULT_CACHE_MAX_BYTES = 256 * 1024 * 1024
const DEFAULT_CACHE_TTL_MINUTES = 60
const DEFAULT_LOG_LEVEL = "info"

// Percentages for which reference images exist on disk.
var knownPercentages = []float64{5, 7.5, 10, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60}

func init() {
	godotenv.Load()
}

// Config is built once at startup and never modified afterwards.
type Config struct {
	Host          string
	Port          string
	AllowedOrigin string
	OutputFolder  string
	Percentages   []float64
	Layouts       map[Category]CategoryLayout
	CacheMaxBytes int
	CacheTTL      time.Duration
	LogLevel      string
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		log.Warn().Msgf("Invalid %s '%s'. Using default %d.", key, val, def)
		return def
	}
	return parsed
}

func loadConfig() (Config, error) {
	cfg := Config{
		Host:          getEnv("HOST", DEFAULT_HOST),
		Port:          getEnv("PORT", DEFAULT_PORT),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", DEFAULT_ALLOWED_ORIGIN),
		OutputFolder:  getEnv("MORPHED_OUTPUT_FOLDER", DEFAULT_OUTPUT_FOLDER),
		Percentages:   append([]float64(nil), knownPercentages...),
		Layouts: map[Category]CategoryLayout{
			CategoryPhaseMap: {
				Folder:   getEnv("PHASE_MAP_IMG_FOLDER", DEFAULT_PHASE_MAP_FOLDER),
				Template: "phase_map_%s.png",
			},
			CategoryKAM: {
				Folder:   getEnv("KAM_IMG_FOLDER", DEFAULT_KAM_FOLDER),
				Template: "KAM_image_%s.png",
			},
		},
		CacheMaxBytes: getEnvInt("REFERENCE_CACHE_MAX_BYTES", DEFAULT_CACHE_MAX_BYTES),
		CacheTTL:      time.Duration(getEnvInt("REFERENCE_CACHE_TTL_MINUTES", DEFAULT_CACHE_TTL_MINUTES)) * time.Minute,
		LogLevel:      getEnv("LOG_LEVEL", DEFAULT_LOG_LEVEL),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.Percentages) == 0 {
		return errors.New("percentage table is empty")
	}
	for i := 1; i < len(c.Percentages); i++ {
		if c.Percentages[i] <= c.Percentages[i-1] {
			return fmt.Errorf("percentage table not strictly ascending at index %d (%v after %v)",
				i, c.Percentages[i], c.Percentages[i-1])
		}
	}
	if c.OutputFolder == "" {
		return errors.New("output folder is empty")
	}
	for category, layout := range c.Layouts {
		if layout.Folder == "" || layout.Template == "" {
			return fmt.Errorf("category %q has no folder or template", category)
		}
	}
	return nil
}

// Bounds of the percentage table.
func (c Config) minPercentage() float64 { return c.Percentages[0] }
func (c Config) maxPercentage() float64 { return c.Percentages[len(c.Percentages)-1] }

func (c Config) addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}
