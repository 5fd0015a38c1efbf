package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MegaGrindStone/study-buddy/internal/relay"
	"github.com/MegaGrindStone/study-buddy/internal/services"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = "8080"
	defaultRelayPort      = "8000"
	defaultChatEndpoint   = "http://127.0.0.1:8000/chat/chat/"
	defaultUploadEndpoint = "http://127.0.0.1:8000/upload/"
	defaultUploadDir      = "uploads"
	defaultLogLevel       = "info"
)

type upstreamConfig interface {
	upstream(store relay.ConversationStore, logger *zap.Logger) (relay.Upstream, error)
}

type config struct {
	Port           string      `yaml:"port"`
	ChatEndpoint   string      `yaml:"chatEndpoint"`
	UploadEndpoint string      `yaml:"uploadEndpoint"`
	StorePath      string      `yaml:"storePath"`
	LogLevel       string      `yaml:"logLevel"`
	Relay          relayConfig `yaml:"relay"`
}

type relayConfig struct {
	Port      string         `yaml:"port"`
	UploadDir string         `yaml:"uploadDir"`
	StorePath string         `yaml:"storePath"`
	Upstream  upstreamConfig `yaml:"upstream"`
}

// BaseLLMConfig contains the common fields for all LLM upstreams.
type BaseLLMConfig struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"systemPrompt"`
}

type webhookConfig struct {
	Provider string `yaml:"provider"`
	URL      string `yaml:"url"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
	MaxTokens     int    `yaml:"maxTokens"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

func defaultConfig(dataDir string) config {
	return config{
		Port:           defaultPort,
		ChatEndpoint:   defaultChatEndpoint,
		UploadEndpoint: defaultUploadEndpoint,
		StorePath:      filepath.Join(dataDir, "store.db"),
		LogLevel:       defaultLogLevel,
		Relay: relayConfig{
			Port:      defaultRelayPort,
			UploadDir: defaultUploadDir,
			StorePath: filepath.Join(dataDir, "relay.db"),
			Upstream:  &webhookConfig{Provider: "webhook"},
		},
	}
}

// loadConfig reads the YAML file at path on top of the defaults. A missing file is not an error.
func loadConfig(path, dataDir string) (config, error) {
	cfg := defaultConfig(dataDir)

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

func (c *relayConfig) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port      string         `yaml:"port"`
		UploadDir string         `yaml:"uploadDir"`
		StorePath string         `yaml:"storePath"`
		Upstream  map[string]any `yaml:"upstream"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	if rawConfig.UploadDir != "" {
		c.UploadDir = rawConfig.UploadDir
	}
	if rawConfig.StorePath != "" {
		c.StorePath = rawConfig.StorePath
	}

	if rawConfig.Upstream == nil {
		return nil
	}

	provider, ok := rawConfig.Upstream["provider"].(string)
	if !ok {
		return fmt.Errorf("upstream provider is required")
	}

	upstreamRawYAML, err := yaml.Marshal(rawConfig.Upstream)
	if err != nil {
		return err
	}

	var upstream upstreamConfig
	switch provider {
	case "webhook":
		upstream = &webhookConfig{}
	case "ollama":
		upstream = &ollamaConfig{}
	case "openai":
		upstream = &openAIConfig{}
	case "anthropic":
		upstream = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown upstream provider: %s", provider)
	}

	if err := yaml.Unmarshal(upstreamRawYAML, upstream); err != nil {
		return err
	}

	c.Upstream = upstream
	return nil
}

func (w webhookConfig) upstream(relay.ConversationStore, *zap.Logger) (relay.Upstream, error) {
	url := w.URL
	if url == "" {
		url = os.Getenv("WEB_HOOK_URL")
	}
	if url == "" {
		return nil, fmt.Errorf("webhook url is required (set relay.upstream.url or WEB_HOOK_URL)")
	}
	return services.NewWebhook(url, nil), nil
}

func (o ollamaConfig) upstream(store relay.ConversationStore, logger *zap.Logger) (relay.Upstream, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://127.0.0.1:11434"
	}

	llm, err := services.NewOllama(host, o.Model, o.SystemPrompt, logger)
	if err != nil {
		return nil, err
	}
	return relay.NewConversation(llm, store), nil
}

func (o openAIConfig) upstream(store relay.ConversationStore, logger *zap.Logger) (relay.Upstream, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required (set relay.upstream.apiKey or OPENAI_API_KEY)")
	}

	llm := services.NewOpenAI(apiKey, o.BaseURL, o.Model, o.SystemPrompt, logger)
	return relay.NewConversation(llm, store), nil
}

func (a anthropicConfig) upstream(store relay.ConversationStore, logger *zap.Logger) (relay.Upstream, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required (set relay.upstream.apiKey or ANTHROPIC_API_KEY)")
	}

	llm := services.NewAnthropic(apiKey, a.BaseURL, a.Model, a.MaxTokens, a.SystemPrompt, logger)
	return relay.NewConversation(llm, store), nil
}
