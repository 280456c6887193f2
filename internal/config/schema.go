// Package config defines the configuration schema for duet.
//
// JSON keys use camelCase. Comments and trailing commas are accepted when
// reading so hand-edited files keep working.
package config

import (
	"fmt"
	"net"
	"net/url"
	"runtime"
	"strconv"
	"time"

	"github.com/duetvoice/duet/internal/schema"
)

// ModelType selects the completion backend.
type ModelType string

const (
	ModelLocal  ModelType = "local"
	ModelOnline ModelType = "online"
)

// TextInputMode selects where user input comes from.
type TextInputMode string

const (
	InputText  TextInputMode = "text"
	InputVoice TextInputMode = "voice"
)

// Config is the root configuration object.
type Config struct {
	Name          string          `json:"name"`
	ModelType     ModelType       `json:"modelType"`
	TextInputMode TextInputMode   `json:"textInputMode"`
	Local         LocalLLMConfig  `json:"local"`
	Online        OnlineLLMConfig `json:"online"`
	TTS           TTSConfig       `json:"tts"`
	Voice         VoiceConfig     `json:"voice"`
	PresetPath    string          `json:"presetPath"`
	HistoryDir    string          `json:"historyDir"`
	ArchivePath   string          `json:"archivePath"`
	Sidecars      []SidecarConfig `json:"sidecars"`
	Log           LogConfig       `json:"log"`
}

// LocalLLMConfig describes the local llama.cpp server and, when LaunchServer
// is set, how to start it.
type LocalLLMConfig struct {
	ServerURL      string   `json:"serverUrl"`
	LaunchServer   bool     `json:"launchServer"`
	ServerBinary   string   `json:"serverBinary"`
	ModelPath      string   `json:"modelPath"`
	ContextSize    int      `json:"contextSize"`
	Temperature    float64  `json:"temperature"`
	NGpuLayers     int      `json:"nGpuLayers"`
	Seed           int      `json:"seed"`
	UseMemoryLock  bool     `json:"useMemoryLock"`
	Threads        int      `json:"threads"`
	BatchThreads   int      `json:"batchThreads"`
	BatchSize      int      `json:"batchSize"`
	FlashAttention bool     `json:"flashAttention"`
	MaxTokens      int      `json:"maxTokens"`
	StopSequences  []string `json:"stopSequences"`
	// OutputFilter overrides the built-in keyword list; null keeps it.
	OutputFilter []string `json:"outputFilter"`
}

// OnlineLLMConfig describes an OpenAI-compatible chat API.
type OnlineLLMConfig struct {
	Model          string  `json:"model"`
	URL            string  `json:"url"`
	APIKey         string  `json:"apiKey"`
	Temperature    float64 `json:"temperature"`
	ContextSize    int     `json:"contextSize"`
	MaxTokens      int     `json:"maxTokens"`
	Stream         bool    `json:"stream"`
	TimeoutSeconds int     `json:"timeoutSeconds"`
}

// TTSConfig configures the Bert-VITS2 speech service.
type TTSConfig struct {
	Enabled     bool    `json:"enabled"`
	URL         string  `json:"url"`
	ID          int     `json:"id"`
	Format      string  `json:"format"`
	Lang        string  `json:"lang"`
	Length      float64 `json:"length"`
	Noise       float64 `json:"noise"`
	Noisew      float64 `json:"noisew"`
	SdpRatio    float64 `json:"sdpRatio"`
	SegmentSize int     `json:"segmentSize"`
	AudioDir    string  `json:"audioDir"`
	// PlayerCommand plays a synthesized file; "{file}" is replaced by its path.
	PlayerCommand []string `json:"playerCommand"`
}

// VoiceConfig configures the listener the speech recognizer posts to.
type VoiceConfig struct {
	ListenAddr           string `json:"listenAddr"`
	ClientTimeoutSeconds int    `json:"clientTimeoutSeconds"`
	// HotwordsDir receives the preset's hot word lists for the recognizer.
	HotwordsDir string `json:"hotwordsDir"`
}

// SidecarConfig is an external process started in voice mode.
type SidecarConfig struct {
	Name    string   `json:"name"`
	Enabled bool     `json:"enabled"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Dir     string   `json:"dir"`
	Env     []string `json:"env,omitempty"`
	// ReadyMarker, when set, must appear in the process output before the
	// next sidecar is started.
	ReadyMarker         string `json:"readyMarker,omitempty"`
	ReadyTimeoutSeconds int    `json:"readyTimeoutSeconds,omitempty"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level string `json:"level"`
	Dir   string `json:"dir"`
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() Config {
	cpus := runtime.NumCPU()
	return Config{
		Name:          "default",
		ModelType:     ModelLocal,
		TextInputMode: InputText,
		Local: LocalLLMConfig{
			ServerURL:      "http://127.0.0.1:8080",
			ServerBinary:   "llama-server",
			ModelPath:      "LlmModel.gguf",
			ContextSize:    2048,
			Temperature:    0.7,
			Seed:           114514,
			UseMemoryLock:  true,
			Threads:        cpus,
			BatchThreads:   cpus,
			BatchSize:      512,
			FlashAttention: true,
			MaxTokens:      -1,
			StopSequences:  []string{"<|im_end|>"},
		},
		Online: OnlineLLMConfig{
			Model:          "gpt-4o",
			URL:            "https://api.openai.com",
			Temperature:    0.7,
			ContextSize:    2048,
			MaxTokens:      -1,
			TimeoutSeconds: 30,
		},
		TTS: TTSConfig{
			Enabled:     true,
			URL:         "http://127.0.0.1:14252",
			ID:          0,
			Format:      "wav",
			Lang:        "zh",
			Length:      1.0,
			Noise:       0.33,
			Noisew:      0.4,
			SdpRatio:    0.2,
			SegmentSize: 50,
			AudioDir:    "Audio",
		},
		Voice: VoiceConfig{
			ListenAddr:           "127.0.0.1:14251",
			ClientTimeoutSeconds: 30,
		},
		PresetPath:  DefaultPresetPath,
		HistoryDir:  "History",
		ArchivePath: "History/turns.bolt",
		Sidecars: []SidecarConfig{
			{Name: "bert-vits2", Command: "python", Args: []string{"app.py"}, Dir: "BertVits2"},
			{Name: "capswriter-server", Command: "python", Args: []string{"start_server.py"}, Dir: "CapsWriter",
				ReadyMarker: "开始服务", ReadyTimeoutSeconds: 120},
			{Name: "capswriter-client", Command: "python", Args: []string{"start_client.py"}, Dir: "CapsWriter"},
		},
		Log: LogConfig{Level: "info", Dir: "Logs"},
	}
}

// ContextBudget is the character budget for the history of the active model.
func (c *Config) ContextBudget() int {
	if c.ModelType == ModelOnline {
		return c.Online.ContextSize
	}
	return c.Local.ContextSize
}

// Sampling returns the generation parameters for the active model.
func (c *Config) Sampling() schema.SamplingConfig {
	if c.ModelType == ModelOnline {
		s := schema.NewSamplingConfig(c.Online.Temperature)
		s.MaxTokens = c.Online.MaxTokens
		return s
	}
	s := schema.NewSamplingConfig(c.Local.Temperature, c.Local.StopSequences...)
	s.MaxTokens = c.Local.MaxTokens
	return s
}

// OnlineTimeout is the network timeout for the online model.
func (c *Config) OnlineTimeout() time.Duration {
	return time.Duration(c.Online.TimeoutSeconds) * time.Second
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.ModelType {
	case ModelLocal, ModelOnline:
	default:
		return fmt.Errorf("modelType must be %q or %q, got %q", ModelLocal, ModelOnline, c.ModelType)
	}
	switch c.TextInputMode {
	case InputText, InputVoice:
	default:
		return fmt.Errorf("textInputMode must be %q or %q, got %q", InputText, InputVoice, c.TextInputMode)
	}
	if c.ContextBudget() <= 0 {
		return fmt.Errorf("contextSize must be positive, got %d", c.ContextBudget())
	}
	return nil
}

// ServerSidecar builds the sidecar that launches llama-server for this
// configuration, listening on the host and port of ServerURL.
func (l LocalLLMConfig) ServerSidecar() (SidecarConfig, error) {
	u, err := url.Parse(l.ServerURL)
	if err != nil {
		return SidecarConfig{}, fmt.Errorf("parse serverUrl: %w", err)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		return SidecarConfig{}, fmt.Errorf("serverUrl needs host:port: %w", err)
	}

	args := []string{
		"-m", l.ModelPath,
		"--host", host,
		"--port", port,
		"-c", strconv.Itoa(l.ContextSize),
		"-ngl", strconv.Itoa(l.NGpuLayers),
		"--seed", strconv.Itoa(l.Seed),
		"-b", strconv.Itoa(l.BatchSize),
	}
	if l.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(l.Threads))
	}
	if l.BatchThreads > 0 {
		args = append(args, "-tb", strconv.Itoa(l.BatchThreads))
	}
	if l.UseMemoryLock {
		args = append(args, "--mlock")
	}
	if l.FlashAttention {
		args = append(args, "-fa")
	}

	return SidecarConfig{
		Name:                "llama-server",
		Enabled:             true,
		Command:             l.ServerBinary,
		Args:                args,
		ReadyMarker:         "server is listening",
		ReadyTimeoutSeconds: 300,
	}, nil
}
