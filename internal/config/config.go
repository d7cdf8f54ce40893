package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"runway-arbiter/internal/logging"
)

type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	TCP     TCPConfig     `yaml:"tcp"`
	Monitor MonitorConfig `yaml:"monitor"`
	Journal JournalConfig `yaml:"journal"`
	Web     WebConfig     `yaml:"web"`
	Lamps   LampsConfig   `yaml:"lamps"`
	Log     LogConfig     `yaml:"log"`
}

// SerialConfig attaches the controller to a UART carrying framed words.
type SerialConfig struct {
	Enable bool   `yaml:"enable"`
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

// TCPConfig exposes the same word channel to network clients.
type TCPConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
	// WordsPerSec and Burst bound inbound words per connection.
	WordsPerSec float64 `yaml:"words_per_sec"`
	Burst       int     `yaml:"burst"`
	// Outbox is the per-connection reply buffer; replies beyond it are dropped.
	Outbox int `yaml:"outbox"`
}

type MonitorConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type JournalConfig struct {
	Record bool   `yaml:"record"`
	Path   string `yaml:"path"`
	// FlushInterval bounds how long recorded exchanges stay buffered.
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type WebConfig struct {
	Enable  bool   `yaml:"enable"`
	Listen  string `yaml:"listen"`
	LogTail int    `yaml:"log_tail"`
}

// LampsConfig drives one GPIO per runway and one for the emergency state.
// Pins use BCM numbering. Leaving emergency_pin unset disables that lamp.
type LampsConfig struct {
	Enable       bool  `yaml:"enable"`
	RunwayPins   []int `yaml:"runway_pins"`
	EmergencyPin *int  `yaml:"emergency_pin"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Dir        string `yaml:"dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultAndValidate fills unset fields and rejects inconsistent settings.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Serial.Enable {
		cfg.Serial.Device = strings.TrimSpace(cfg.Serial.Device)
		if cfg.Serial.Device == "" {
			return fmt.Errorf("serial.device is required when serial.enable is true")
		}
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = 115200
	}
	if cfg.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must be > 0")
	}

	if strings.TrimSpace(cfg.TCP.Listen) == "" {
		cfg.TCP.Listen = ":4009"
	}
	if cfg.TCP.WordsPerSec == 0 {
		cfg.TCP.WordsPerSec = 50
	}
	if cfg.TCP.WordsPerSec < 0 {
		return fmt.Errorf("tcp.words_per_sec must be > 0")
	}
	if cfg.TCP.Burst <= 0 {
		cfg.TCP.Burst = 16
	}
	if cfg.TCP.Outbox <= 0 {
		cfg.TCP.Outbox = 64
	}

	if cfg.Monitor.Enable && strings.TrimSpace(cfg.Monitor.Dest) == "" {
		return fmt.Errorf("monitor.dest is required when monitor.enable is true")
	}

	if cfg.Journal.Record && strings.TrimSpace(cfg.Journal.Path) == "" {
		return fmt.Errorf("journal.path is required when journal.record is true")
	}
	if cfg.Journal.FlushInterval <= 0 {
		cfg.Journal.FlushInterval = 1 * time.Second
	}

	if strings.TrimSpace(cfg.Web.Listen) == "" {
		cfg.Web.Listen = ":8080"
	}
	if cfg.Web.LogTail <= 0 {
		cfg.Web.LogTail = 2000
	}

	if cfg.Lamps.Enable {
		if len(cfg.Lamps.RunwayPins) != 2 {
			return fmt.Errorf("lamps.runway_pins must list exactly 2 pins")
		}
		for _, p := range cfg.Lamps.RunwayPins {
			if p < 0 {
				return fmt.Errorf("lamps.runway_pins must be >= 0")
			}
		}
		if cfg.Lamps.EmergencyPin != nil && *cfg.Lamps.EmergencyPin < 0 {
			return fmt.Errorf("lamps.emergency_pin must be >= 0")
		}
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if !cfg.Serial.Enable && !cfg.TCP.Enable {
		return fmt.Errorf("at least one of serial.enable or tcp.enable is required")
	}
	return nil
}
