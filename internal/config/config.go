package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ManagerGroup identifies a group of CRM managers that dialogs can be
// assigned to.
type ManagerGroup struct {
	Symbol string `yaml:"symbol"`
	ID     int    `yaml:"id"`
	Group  string `yaml:"group"`
}

type GatewayConfig struct {
	// Base URL of the Message Gateway Bot API, e.g.
	// https://mg-s1.retailcrm.pro/api/bot/v1
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	// Channel IDs the bot listens to; messages from other channels are
	// ignored.
	Channels []int `yaml:"channels"`
	// Seconds between GET /bots availability probes.
	ProbeInterval int `yaml:"probe_interval"`
}

type MoySkladConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

type SheetConfig struct {
	// Google spreadsheet ID of the care sheet.
	ID string `yaml:"id"`
}

type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	VisionModel    string `yaml:"vision_model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	// Supergroup the seller notifications go to, with the topic inside it.
	ChatID  int64 `yaml:"chat_id"`
	TopicID int   `yaml:"topic_id"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// HS256 secret guarding the admin endpoints. Empty disables them.
	AdminSecret string `yaml:"admin_secret"`
}

type CatalogConfig struct {
	DataDir string `yaml:"data_dir"`
	// Hours between background catalog refreshes.
	RefreshInterval int `yaml:"refresh_interval"`
	// Storefront base URL used when generating catalog links.
	StoreURL string `yaml:"store_url"`
}

type Config struct {
	LogDir   string         `yaml:"log_dir"`
	LogLevel string         `yaml:"log_level"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	MoySklad MoySkladConfig `yaml:"moysklad"`
	Sheet    SheetConfig    `yaml:"sheet"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Telegram TelegramConfig `yaml:"telegram"`
	Server   ServerConfig   `yaml:"server"`
	Catalog  CatalogConfig  `yaml:"catalog"`

	ManagerB2B ManagerGroup `yaml:"manager_b2b"`
	ManagerB2C ManagerGroup `yaml:"manager_b2c"`
}

// Load reads the yaml config at path, fills defaults and applies
// environment overrides for the secrets. A missing file is not an error:
// the defaults plus environment are enough for a working setup.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		LogDir:   DefaultLogDir,
		LogLevel: "info",
		Gateway: GatewayConfig{
			BaseURL:       "https://mg-s1.retailcrm.pro/api/bot/v1",
			Channels:      []int{13, 18},
			ProbeInterval: 300,
		},
		MoySklad: MoySkladConfig{
			BaseURL: "https://api.moysklad.ru/api/remap/1.2",
		},
		OpenAI: OpenAIConfig{
			Model:          "gpt-4.1-mini",
			VisionModel:    "gpt-4o",
			EmbeddingModel: "text-embedding-3-small",
		},
		Server: ServerConfig{
			ListenAddr: DefaultListenAddr,
		},
		Catalog: CatalogConfig{
			DataDir:         DefaultDataDir,
			RefreshInterval: 1,
			StoreURL:        "https://tropichouse.ru",
		},
		ManagerB2B: ManagerGroup{Symbol: "manager b2b", ID: 71, Group: "b2b"},
		ManagerB2C: ManagerGroup{Symbol: "manager", ID: 2, Group: "b2c"},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RETAIL_CRM_BOT_TOKEN"); v != "" {
		cfg.Gateway.Token = v
	}
	if v := os.Getenv("MOY_SKLAD"); v != "" {
		cfg.MoySklad.Token = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("TELEGRAM_TOPIC_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Telegram.TopicID = id
		}
	}
	if v := os.Getenv("OLIVIA_ADMIN_SECRET"); v != "" {
		cfg.Server.AdminSecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Catalog.DataDir == "" {
		cfg.Catalog.DataDir = DefaultDataDir
	}
	if cfg.Catalog.RefreshInterval <= 0 {
		cfg.Catalog.RefreshInterval = 1
	}
	if cfg.Gateway.ProbeInterval <= 0 {
		cfg.Gateway.ProbeInterval = 300
	}
	if len(cfg.Gateway.Channels) == 0 {
		cfg.Gateway.Channels = []int{13, 18}
	}
}

// Validate reports the settings without which the daemon cannot start.
func (c *Config) Validate() error {
	if c.Gateway.Token == "" {
		return fmt.Errorf("gateway token is not set (RETAIL_CRM_BOT_TOKEN)")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai api key is not set (OPENAI_API_KEY)")
	}
	return nil
}
