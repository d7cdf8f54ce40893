package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

func TestLoad_RequiresATransport(t *testing.T) {
	path := writeTempConfig(t, "web:\n  enable: true\n")
	_, err := Load(path)
	requireErrEq(t, err, "at least one of serial.enable or tcp.enable is required")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, "tcp:\n  enable: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.TCP.Listen != ":4009" {
		t.Fatalf("tcp.listen=%q want :4009", cfg.TCP.Listen)
	}
	if cfg.TCP.WordsPerSec != 50 || cfg.TCP.Burst != 16 || cfg.TCP.Outbox != 64 {
		t.Fatalf("tcp defaults=%+v", cfg.TCP)
	}
	if cfg.Serial.Baud != 115200 {
		t.Fatalf("serial.baud=%d want 115200", cfg.Serial.Baud)
	}
	if cfg.Journal.FlushInterval != 1*time.Second {
		t.Fatalf("journal.flush_interval=%s want 1s", cfg.Journal.FlushInterval)
	}
	if cfg.Web.Listen != ":8080" || cfg.Web.LogTail != 2000 {
		t.Fatalf("web defaults=%+v", cfg.Web)
	}
}

func TestLoad_ParsesDurationsAndPins(t *testing.T) {
	path := writeTempConfig(t, `
serial:
  enable: true
  device: " /dev/ttyUSB0 "
  baud: 9600
journal:
  record: true
  path: /tmp/arbiter.journal
  flush_interval: 250ms
lamps:
  enable: true
  runway_pins: [17, 27]
  emergency_pin: 22
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyUSB0" {
		t.Fatalf("serial.device=%q", cfg.Serial.Device)
	}
	if cfg.Journal.FlushInterval != 250*time.Millisecond {
		t.Fatalf("flush_interval=%s", cfg.Journal.FlushInterval)
	}
	if cfg.Lamps.RunwayPins[1] != 27 || cfg.Lamps.EmergencyPin == nil || *cfg.Lamps.EmergencyPin != 22 {
		t.Fatalf("lamps=%+v", cfg.Lamps)
	}
}

func TestLoad_LampsAcceptGPIOZero(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "tcp:\n  enable: true\nlamps:\n  enable: true\n  runway_pins: [0, 1]\n  emergency_pin: 0\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Lamps.EmergencyPin == nil || *cfg.Lamps.EmergencyPin != 0 {
		t.Fatalf("emergency_pin=%v want 0", cfg.Lamps.EmergencyPin)
	}

	cfg, err = Load(writeTempConfig(t, "tcp:\n  enable: true\nlamps:\n  enable: true\n  runway_pins: [17, 27]\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Lamps.EmergencyPin != nil {
		t.Fatalf("emergency_pin=%d want unset", *cfg.Lamps.EmergencyPin)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "SerialNeedsDevice",
			yaml: "serial:\n  enable: true\n",
			want: "serial.device is required when serial.enable is true",
		},
		{
			name: "MonitorNeedsDest",
			yaml: "tcp:\n  enable: true\nmonitor:\n  enable: true\n",
			want: "monitor.dest is required when monitor.enable is true",
		},
		{
			name: "JournalNeedsPath",
			yaml: "tcp:\n  enable: true\njournal:\n  record: true\n",
			want: "journal.path is required when journal.record is true",
		},
		{
			name: "LampsNeedTwoPins",
			yaml: "tcp:\n  enable: true\nlamps:\n  enable: true\n  runway_pins: [17]\n",
			want: "lamps.runway_pins must list exactly 2 pins",
		},
		{
			name: "NegativeRunwayPin",
			yaml: "tcp:\n  enable: true\nlamps:\n  enable: true\n  runway_pins: [-1, 27]\n",
			want: "lamps.runway_pins must be >= 0",
		},
		{
			name: "NegativeEmergencyPin",
			yaml: "tcp:\n  enable: true\nlamps:\n  enable: true\n  runway_pins: [17, 27]\n  emergency_pin: -2\n",
			want: "lamps.emergency_pin must be >= 0",
		},
		{
			name: "NegativeRate",
			yaml: "tcp:\n  enable: true\n  words_per_sec: -1\n",
			want: "tcp.words_per_sec must be > 0",
		},
		{
			name: "BadLogLevel",
			yaml: "tcp:\n  enable: true\nlog:\n  level: loud\n",
			want: "log.level: invalid log level \"loud\"",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.yaml))
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestDefaultAndValidate_Nil(t *testing.T) {
	requireErrEq(t, DefaultAndValidate(nil), "config is nil")
}

func TestLoad_DevConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "dev.yaml"))
	if err != nil {
		t.Fatalf("Load(dev.yaml) error: %v", err)
	}
	if !cfg.TCP.Enable || cfg.TCP.Listen != "127.0.0.1:4009" {
		t.Fatalf("tcp=%+v", cfg.TCP)
	}
	if cfg.Journal.FlushInterval != time.Second {
		t.Fatalf("journal.flush_interval=%s want 1s", cfg.Journal.FlushInterval)
	}
	if len(cfg.Lamps.RunwayPins) != 2 {
		t.Fatalf("lamps.runway_pins=%v", cfg.Lamps.RunwayPins)
	}
}
