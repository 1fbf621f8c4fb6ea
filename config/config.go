package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/maastricht-university/meeting-transcriber/speaker"
)

type Service struct {
	URL        string `yaml:"url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// Services lists the model services. Each one is an opaque capability
// provider reached over HTTP.
type Services struct {
	Diarization   Service `yaml:"diarization"`
	Embedding     Service `yaml:"embedding"`
	Transcription Service `yaml:"transcription"`
	Quality       Service `yaml:"quality"`
	// Token is forwarded as a bearer token to every model service.
	Token string `yaml:"token"`
}

type Audio struct {
	// TranscriptionSampleRate is the rate the speech-to-text model expects.
	TranscriptionSampleRate int `yaml:"transcription_sample_rate"`
}

type Matching struct {
	SNRThreshold       float64 `yaml:"snr_threshold"`
	MinSegmentDuration float64 `yaml:"min_segment_duration"`
	MatchThreshold     float64 `yaml:"embedding_match_threshold"`
}

type Embedding struct {
	Dimension int     `yaml:"dimension"`
	Mode      string  `yaml:"mode"` // whole | window
	WindowSec float64 `yaml:"window_sec"`
	StepSec   float64 `yaml:"step_sec"`
}

type Transcription struct {
	Language  string `yaml:"language"`
	ModelSize string `yaml:"model_size"`
	Provider  string `yaml:"provider"` // http | openai
	OpenAI    struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"openai"`
}

type Device struct {
	Accelerator     string   `yaml:"accelerator"`
	Capability      string   `yaml:"capability"`
	SupportedArches []string `yaml:"supported_arches"`
	RetryOnFallback bool     `yaml:"retry_on_fallback"`
}

type S3 struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type Storage struct {
	Backend string `yaml:"backend"` // local | s3
	Root    string `yaml:"root"`
	S3      S3     `yaml:"s3"`
}

type Database struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type References struct {
	Backend string `yaml:"backend"` // database | badger
	Dir     string `yaml:"dir"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Lease struct {
	Backend string `yaml:"backend"` // local | redis
	TTLSec  int    `yaml:"ttl_sec"`
}

type Queue struct {
	Backend string `yaml:"backend"` // local | redis
	Name    string `yaml:"name"`
}

type Worker struct {
	Count       int    `yaml:"count"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type Root struct {
	Pipeline struct {
		Name      string `yaml:"name"`
		Version   string `yaml:"version"`
		LogLvl    string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"pipeline"`
	Audio         Audio         `yaml:"audio"`
	Services      Services      `yaml:"services"`
	Matching      Matching      `yaml:"matching"`
	Embedding     Embedding     `yaml:"embedding"`
	Transcription Transcription `yaml:"transcription"`
	Device        Device        `yaml:"device"`
	Storage       Storage       `yaml:"storage"`
	Database      Database      `yaml:"database"`
	References    References    `yaml:"references"`
	Redis         Redis         `yaml:"redis"`
	Lease         Lease         `yaml:"lease"`
	Queue         Queue         `yaml:"queue"`
	Worker        Worker        `yaml:"worker"`
}

// Default returns a Root populated with the built-in defaults. Values read
// from a config file or the environment are applied on top of it.
func Default() *Root {
	var c Root
	c.Pipeline.Name = "meeting-transcriber"
	c.Pipeline.LogLvl = "info"
	c.Pipeline.LogFormat = "text"
	c.Audio.TranscriptionSampleRate = 16000
	c.Matching = Matching{
		SNRThreshold:       speaker.DefaultSNRThreshold,
		MinSegmentDuration: speaker.DefaultMinSegmentDuration,
		MatchThreshold:     speaker.DefaultMatchThreshold,
	}
	c.Embedding = Embedding{Dimension: 512, Mode: "whole", WindowSec: 3, StepSec: 1.5}
	c.Transcription.Language = "English"
	c.Transcription.ModelSize = "medium"
	c.Transcription.Provider = "http"
	c.Transcription.OpenAI.Model = "whisper-1"
	c.Device.RetryOnFallback = true
	c.Storage = Storage{Backend: "local", Root: "uploads"}
	c.Database.MaxConns = 10
	c.References.Backend = "database"
	c.Lease = Lease{Backend: "local", TTLSec: 120}
	c.Queue = Queue{Backend: "local", Name: "transcription:jobs"}
	c.Worker = Worker{Count: 2, MetricsAddr: ":9102"}
	return &c
}

// Load reads the YAML config at path. With an empty path it looks for
// config/<CONFIG_ENV>/config.yaml, falling back to config.yaml. Environment
// variables override file values.
func Load(path string) (*Root, error) {
	cfg := Default()

	guess := []string{path}
	if path == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		guess = []string{
			filepath.Join("config", env, "config.yaml"),
			"config.yaml",
		}
	}

	var found bool
	for _, p := range guess {
		b, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == "" {
				continue
			}
			return nil, fmt.Errorf("read config %s: %w", p, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", p, err)
		}
		found = true
		break
	}
	if !found && path != "" {
		return nil, fmt.Errorf("config %s not found", path)
	}

	applyEnv(viper.New(), cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(v *viper.Viper, c *Root) {
	v.AutomaticEnv()

	if v.IsSet("SNR_THRESHOLD") {
		c.Matching.SNRThreshold = v.GetFloat64("SNR_THRESHOLD")
	}
	if v.IsSet("MIN_SEGMENT_DURATION") {
		c.Matching.MinSegmentDuration = v.GetFloat64("MIN_SEGMENT_DURATION")
	}
	if v.IsSet("EMBEDDING_MATCH_THRESHOLD") {
		c.Matching.MatchThreshold = v.GetFloat64("EMBEDDING_MATCH_THRESHOLD")
	}
	setString(v, "TRANSCRIPTION_LANGUAGE", &c.Transcription.Language)
	setString(v, "TRANSCRIPTION_MODEL_SIZE", &c.Transcription.ModelSize)
	setString(v, "STORAGE_ROOT", &c.Storage.Root)
	setString(v, "DATABASE_URL", &c.Database.URL)
	setString(v, "REDIS_ADDR", &c.Redis.Addr)
	setString(v, "OPENAI_API_KEY", &c.Transcription.OpenAI.APIKey)
	setString(v, "HUGGING_FACE_TOKEN", &c.Services.Token)
	setString(v, "LOG_LEVEL", &c.Pipeline.LogLvl)
}

func setString(v *viper.Viper, key string, dst *string) {
	if s := v.GetString(key); s != "" {
		*dst = s
	}
}

// Validate checks ranges and required values.
func (c *Root) Validate() error {
	m := c.Matching
	if m.MatchThreshold < -1 || m.MatchThreshold > 1 {
		return fmt.Errorf("matching.embedding_match_threshold %v outside [-1, 1]", m.MatchThreshold)
	}
	if m.MinSegmentDuration < 0 {
		return fmt.Errorf("matching.min_segment_duration must be >= 0, got %v", m.MinSegmentDuration)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}
	switch c.Embedding.Mode {
	case "whole":
	case "window":
		if c.Embedding.WindowSec <= 0 || c.Embedding.StepSec <= 0 {
			return fmt.Errorf("embedding window_sec and step_sec must be positive in window mode")
		}
	default:
		return fmt.Errorf("embedding.mode %q: want whole or window", c.Embedding.Mode)
	}
	if c.Audio.TranscriptionSampleRate <= 0 {
		return fmt.Errorf("audio.transcription_sample_rate must be positive")
	}
	switch c.Transcription.Provider {
	case "http":
		if c.Services.Transcription.URL == "" {
			return fmt.Errorf("services.transcription.url is required for the http provider")
		}
	case "openai":
		if c.Transcription.OpenAI.APIKey == "" {
			return fmt.Errorf("transcription.openai.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("transcription.provider %q: want http or openai", c.Transcription.Provider)
	}
	for name, s := range map[string]Service{
		"diarization": c.Services.Diarization,
		"embedding":   c.Services.Embedding,
		"quality":     c.Services.Quality,
	} {
		if s.URL == "" {
			return fmt.Errorf("services.%s.url is required", name)
		}
	}
	if c.Storage.Backend == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
	}
	return nil
}

// MatchParams returns the speaker-identification thresholds for one run.
func (c *Root) MatchParams() speaker.Params {
	return speaker.Params{
		SNRThreshold:       c.Matching.SNRThreshold,
		MinSegmentDuration: c.Matching.MinSegmentDuration,
		MatchThreshold:     c.Matching.MatchThreshold,
	}
}

// ModelName maps the size tier and language to a speech-to-text model name.
// English-only variants exist for every tier except large.
func (t Transcription) ModelName() string {
	name := t.ModelSize
	if strings.EqualFold(t.Language, "english") && t.ModelSize != "large" {
		name += ".en"
	}
	return name
}

// LanguageCode returns the ISO 639-1 code for the configured language.
func (t Transcription) LanguageCode() string {
	switch strings.ToLower(t.Language) {
	case "english", "en":
		return "en"
	case "french", "fr":
		return "fr"
	case "german", "de":
		return "de"
	case "spanish", "es":
		return "es"
	case "dutch", "nl":
		return "nl"
	}
	return strings.ToLower(t.Language)
}

func DurSeconds(n int) time.Duration { return time.Duration(n) * time.Second }
