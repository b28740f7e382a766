package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	MediaDir string `env:"MEDIA_DIR" envDefault:"./media"`
	InboxDir string `env:"INBOX_DIR"` // optional drop directory watched for new uploads

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	MaxUploadMB  int64         `env:"MAX_UPLOAD_MB" envDefault:"512"`

	AuthToken   string   `env:"AUTH_TOKEN"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","` // empty allows any origin

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Transcribe TranscribeConfig
	LLM        LLMConfig
	Scheduler  SchedulerConfig
	Render     RenderConfig
	S3         S3Config
}

// TranscribeConfig selects and tunes the speech-to-text backend.
type TranscribeConfig struct {
	Provider string `env:"STT_PROVIDER" envDefault:"whisper"` // "whisper", "scribe", "captions"

	WhisperURL   string        `env:"WHISPER_URL" envDefault:"http://localhost:8000/v1/audio/transcriptions"`
	WhisperModel string        `env:"WHISPER_MODEL" envDefault:"large-v3"`
	Timeout      time.Duration `env:"STT_TIMEOUT" envDefault:"120s"`

	ScribeAPIKey   string        `env:"SCRIBE_API_KEY"`
	ScribeBaseURL  string        `env:"SCRIBE_BASE_URL" envDefault:"https://api.assemblyai.com"`
	PollInterval   time.Duration `env:"STT_POLL_INTERVAL" envDefault:"5s"`
	PollTimeout    time.Duration `env:"STT_POLL_TIMEOUT" envDefault:"10m"`
	CaptionBaseURL string        `env:"CAPTION_BASE_URL"`

	Language  string `env:"STT_LANGUAGE" envDefault:"en"`
	Workers   int    `env:"STT_WORKERS" envDefault:"2"`
	QueueSize int    `env:"STT_QUEUE_SIZE" envDefault:"64"`
}

// LLMConfig tunes the clip-selection model client.
type LLMConfig struct {
	APIKey      string        `env:"LLM_API_KEY"`
	BaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://openrouter.ai/api"`
	Model       string        `env:"LLM_MODEL" envDefault:"anthropic/claude-3.5-sonnet"`
	Timeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"90s"`
	MaxAttempts int           `env:"LLM_MAX_ATTEMPTS" envDefault:"4"`
	MinInterval time.Duration `env:"LLM_MIN_INTERVAL" envDefault:"1s"` // fixed-delay rate gate
}

// SchedulerConfig carries the clip timeline pacing policy.
type SchedulerConfig struct {
	MinDuration  float64 `env:"CLIP_MIN_DURATION" envDefault:"3.0"`
	MaxDuration  float64 `env:"CLIP_MAX_DURATION" envDefault:"60.0"`
	StartPadding float64 `env:"CLIP_START_PADDING" envDefault:"2.0"`
	EndPadding   float64 `env:"CLIP_END_PADDING" envDefault:"2.0"`
	MinGap       float64 `env:"CLIP_MIN_GAP" envDefault:"0.5"`
}

// RenderConfig tunes the media-tool invocation.
type RenderConfig struct {
	FFmpegPath  string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath string        `env:"FFPROBE_PATH" envDefault:"ffprobe"`
	Timeout     time.Duration `env:"RENDER_TIMEOUT" envDefault:"30m"` // hard kill bound per render
	Workers     int           `env:"RENDER_WORKERS" envDefault:"1"`
	QueueSize   int           `env:"RENDER_QUEUE_SIZE" envDefault:"16"`
}

// S3Config configures artifact storage in an S3-compatible object store.
// Leave Bucket empty to store artifacts on the local filesystem.
type S3Config struct {
	Bucket        string        `env:"S3_BUCKET"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint      string        `env:"S3_ENDPOINT"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	Prefix        string        `env:"S3_PREFIX"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"24h"`
}

// Enabled reports whether S3 storage is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	MediaDir    string
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.MediaDir != "" {
		cfg.MediaDir = overrides.MediaDir
	}

	return cfg, nil
}
