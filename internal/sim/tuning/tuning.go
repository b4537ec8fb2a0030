package tuning

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Rows   int `yaml:"rows"`
	Cols   int `yaml:"cols"`
	TickMs int `yaml:"tick_ms"`
	// Seed 0 means "pick one per game".
	Seed int64 `yaml:"seed"`

	Display Display `yaml:"display"`

	DataDir string `yaml:"data_dir"`
	AMQPURL string `yaml:"amqp_url"`
}

// Display configures the outbound link to the LED panel.
type Display struct {
	URL            string `yaml:"url"`
	SendIntervalMs int    `yaml:"send_interval_ms"`
	Enabled        bool   `yaml:"enabled"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Rows:            20,
		Cols:            10,
		TickMs:          500,
		Display: Display{
			URL:            "ws://192.168.4.1:81",
			SendIntervalMs: 500,
		},
		DataDir: "./data",
	}
}

func (t Tuning) TickDelay() time.Duration {
	return time.Duration(t.TickMs) * time.Millisecond
}

func (d Display) SendInterval() time.Duration {
	return time.Duration(d.SendIntervalMs) * time.Millisecond
}

// Load starts from Defaults and overlays the YAML file at path. An empty
// path skips the file.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if path == "" {
		return t, t.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, t.Validate()
}

// LoadEnv reads an optional dotenv file into the process environment and
// then applies STACKFALL_* overrides to t. A missing dotenv file is fine.
func LoadEnv(t Tuning, dotenv string) (Tuning, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return t, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	return ApplyEnv(t, os.LookupEnv)
}

// ApplyEnv overrides fields from lookup, which is os.LookupEnv outside tests.
func ApplyEnv(t Tuning, lookup func(string) (string, bool)) (Tuning, error) {
	ints := []struct {
		key string
		dst *int
	}{
		{"STACKFALL_TICK_MS", &t.TickMs},
		{"STACKFALL_DISPLAY_SEND_INTERVAL_MS", &t.Display.SendIntervalMs},
	}
	for _, e := range ints {
		v, ok := lookup(e.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return t, fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = n
	}
	if v, ok := lookup("STACKFALL_SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return t, fmt.Errorf("STACKFALL_SEED: %w", err)
		}
		t.Seed = n
	}
	if v, ok := lookup("STACKFALL_DISPLAY_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return t, fmt.Errorf("STACKFALL_DISPLAY_ENABLED: %w", err)
		}
		t.Display.Enabled = b
	}
	strs := []struct {
		key string
		dst *string
	}{
		{"STACKFALL_DISPLAY_URL", &t.Display.URL},
		{"STACKFALL_DATA_DIR", &t.DataDir},
		{"STACKFALL_AMQP_URL", &t.AMQPURL},
	}
	for _, e := range strs {
		if v, ok := lookup(e.key); ok && v != "" {
			*e.dst = v
		}
	}
	return t, t.Validate()
}

func (t Tuning) Validate() error {
	if t.Rows < 4 || t.Cols < 3 {
		return fmt.Errorf("tuning: grid %dx%d too small", t.Rows, t.Cols)
	}
	if t.TickMs <= 0 {
		return fmt.Errorf("tuning: tick_ms must be positive, got %d", t.TickMs)
	}
	if t.Display.SendIntervalMs <= 0 {
		return fmt.Errorf("tuning: display.send_interval_ms must be positive, got %d", t.Display.SendIntervalMs)
	}
	return nil
}
