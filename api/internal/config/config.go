package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	GeminiAPIKey string
	GeminiModel  string

	DIEndpoint   string
	DIAPIKey     string
	DIAPIVersion string
	DIModelID    string

	AzureOpenAIEndpoint   string
	AzureOpenAIAPIKey     string
	AzureOpenAIAPIVersion string
	AzureOpenAIDeployment string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	WhisperModel  string

	VehicleConfigPath string
	FormsDir          string

	DatabaseURL    string
	ReportCacheTTL time.Duration

	JobWorkers       int
	JobQueueSize     int
	JobTimeout       time.Duration
	JobQueueTimeout  time.Duration
	JobTTL           time.Duration
	JobSweepInterval time.Duration

	RequestTimeout      time.Duration
	MaxUploadMB         int
	ImageMaxSide        int
	DownloadConcurrency int
}

// Load reads the environment, after merging an optional .env file from the working directory.
// Variables already set in the environment win over the file.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		DIEndpoint:   getEnv("DI_ENDPOINT", ""),
		DIAPIKey:     getEnv("DI_API_KEY", ""),
		DIAPIVersion: getEnv("DI_API_VERSION", "2024-11-30"),
		DIModelID:    getEnv("DI_MODEL_ID", "prebuilt-layout"),

		AzureOpenAIEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIAPIKey:     getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureOpenAIAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-10-21"),
		AzureOpenAIDeployment: getEnv("AZURE_OPENAI_DEPLOYMENT", "gpt-4o"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		WhisperModel:  getEnv("WHISPER_MODEL", "whisper-1"),

		VehicleConfigPath: getEnv("VEHICLE_CONFIG_PATH", ""),
		FormsDir:          getEnv("FORMS_DIR", ""),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ReportCacheTTL: getEnvAsDuration("REPORT_CACHE_TTL", 30*24*time.Hour),

		JobWorkers:       getEnvAsInt("JOB_WORKERS", 4),
		JobQueueSize:     getEnvAsInt("JOB_QUEUE_SIZE", 64),
		JobTimeout:       getEnvAsDuration("JOB_TIMEOUT", 10*time.Minute),
		JobQueueTimeout:  getEnvAsDuration("JOB_QUEUE_TIMEOUT", 30*time.Minute),
		JobTTL:           getEnvAsDuration("JOB_TTL", time.Hour),
		JobSweepInterval: getEnvAsDuration("JOB_SWEEP_INTERVAL", time.Minute),

		RequestTimeout:      getEnvAsDuration("REQUEST_TIMEOUT", 120*time.Second),
		MaxUploadMB:         getEnvAsInt("MAX_UPLOAD_MB", 25),
		ImageMaxSide:        getEnvAsInt("IMAGE_MAX_SIDE", 1000),
		DownloadConcurrency: getEnvAsInt("DOWNLOAD_CONCURRENCY", 4),
	}
}

// UseAzureChat reports whether extraction goes to an Azure OpenAI deployment rather than OpenAI.
func (c *Config) UseAzureChat() bool {
	return c.AzureOpenAIEndpoint != ""
}

// Validate lists every missing credential at once.
func (c *Config) Validate() error {
	var errs []error
	need := func(key, v string) {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, errors.New("missing required env "+key))
		}
	}
	need("GEMINI_API_KEY", c.GeminiAPIKey)
	need("DI_ENDPOINT", c.DIEndpoint)
	need("DI_API_KEY", c.DIAPIKey)
	need("OPENAI_API_KEY", c.OpenAIAPIKey)
	if c.UseAzureChat() {
		need("AZURE_OPENAI_API_KEY", c.AzureOpenAIAPIKey)
	}
	if c.JobWorkers <= 0 || c.JobQueueSize <= 0 {
		errs = append(errs, errors.New("JOB_WORKERS and JOB_QUEUE_SIZE must be positive"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
