package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string

	AnimeCSVPath string
	MangaCSVPath string

	LogMode string

	WatchIntervalSec int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "mediadex.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		AnimeCSVPath: getEnv("ANIME_CSV_PATH", filepath.Join(cwd, "raw_data", "anime_entries.csv")),
		MangaCSVPath: getEnv("MANGA_CSV_PATH", filepath.Join(cwd, "raw_data", "manga_entries.csv")),

		LogMode: getEnv("LOG_MODE", "dev"),

		WatchIntervalSec: getEnvInt("WATCH_INTERVAL_SEC", 60),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
