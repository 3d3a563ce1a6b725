package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ericogr/sensehat-weather/pkg/indicator"
)

const (
	SensorReal       = "real"
	SensorSimulation = "simulation"

	OutputConsole = "console"
	OutputMQTT    = "mqtt"
	OutputHTML    = "html"
	OutputHTTP    = "http"
	OutputMatrix  = "matrix"
	OutputWeb     = "web"

	MatrixSenseHAT    = "sensehat"
	MatrixFramebuffer = "framebuffer"
	MatrixTerminal    = "terminal"
)

// defaults match the Sense HAT weather scripts this replaces
const (
	DefaultIntervalMs     = 10000
	DefaultHTTPIntervalMs = 3600000
	DefaultHTTPURL        = "https://raspi-spotify.herokuapp.com/weather"
	DefaultHTTPTimeoutMs  = 10000
	DefaultHTMLPath       = "../index.html"
	DefaultRoundDigits    = 2
	DefaultI2CBus         = "1"
	DefaultBME280Address  = 0x76
	DefaultSenseHATBus    = "1"
	DefaultSenseHATAddr   = 0x46
	DefaultFramebuffer    = "/dev/fb1"
	DefaultWebAddr        = ":8080"
	DefaultMQTTServer     = "tcp://localhost:1883"
	DefaultMQTTClientID   = "sensehat-weather"
	DefaultMQTTStateTopic = "sensehat/%s"
)

type MQTTConfig struct {
	Server            string `json:"server"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	ClientID          string `json:"client_id"`
	StateTopic        string `json:"state_topic"`
	DiscoveryTopic    string `json:"discovery_topic,omitempty"`
	DiscoveryName     string `json:"discovery_name,omitempty"`
	DiscoveryUniqueID string `json:"discovery_unique_id,omitempty"`
}

// HTMLConfig points at a document whose elements with the given ids get
// their text replaced on every publish.
type HTMLConfig struct {
	Path          string `json:"path"`
	TimeID        string `json:"time_id,omitempty"`
	TemperatureID string `json:"temperature_id,omitempty"`
	HumidityID    string `json:"humidity_id,omitempty"`
	TimeLayout    string `json:"time_layout,omitempty"`
}

type HTTPConfig struct {
	URL       string `json:"url"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

type MatrixConfig struct {
	Driver     string `json:"driver"`
	I2CBus     string `json:"i2c_bus,omitempty"`
	I2CAddress int    `json:"i2c_address,omitempty"`
	Device     string `json:"device,omitempty"`
}

type WebConfig struct {
	Addr string `json:"addr"`
}

type OutputConfig struct {
	Type       string        `json:"type"`
	IntervalMs int           `json:"interval_ms,omitempty"`
	MQTT       *MQTTConfig   `json:"mqtt,omitempty"`
	HTML       *HTMLConfig   `json:"html,omitempty"`
	HTTP       *HTTPConfig   `json:"http,omitempty"`
	Matrix     *MatrixConfig `json:"matrix,omitempty"`
	Web        *WebConfig    `json:"web,omitempty"`
}

type Config struct {
	SensorType      string            `json:"sensor_type"`
	I2CBus          string            `json:"i2c_bus"`
	I2CAddress      int               `json:"i2c_address"`
	IntervalMs      int               `json:"interval_ms"`
	RoundDigits     int               `json:"round_digits"`
	ContinueOnError bool              `json:"continue_on_error"`
	PressureMode    string            `json:"pressure_mode"`
	Palette         indicator.Palette `json:"palette"`
	Outputs         []OutputConfig    `json:"outputs"`
}

func DefaultConfig() Config {
	return Config{
		SensorType:   SensorReal,
		I2CBus:       DefaultI2CBus,
		I2CAddress:   DefaultBME280Address,
		IntervalMs:   DefaultIntervalMs,
		RoundDigits:  DefaultRoundDigits,
		PressureMode: string(indicator.PressureModeReference),
		Palette:      indicator.DefaultPalette(),
		Outputs:      []OutputConfig{{Type: OutputConsole}},
	}
}

// LoadFromFlags loads configuration from the process arguments.
func LoadFromFlags() (Config, error) {
	return Load(os.Args[1:])
}

// Load reads an optional JSON config file and applies flags on top of it.
// Flags override values present in the JSON file.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("sensehat-weather", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "Path to JSON config file")
	flagSensorType := fs.String("sensor-type", "", "sensor type: real|simulation")
	flagI2CBus := fs.String("i2c-bus", "", "I2C bus of the environment sensor (e.g. '1' -> /dev/i2c-1)")
	flagI2CAddStr := fs.String("i2c-address", "", "I2C address of the environment sensor (decimal or 0x hex)")
	flagInterval := fs.Int("interval-ms", -1, "Poll interval in ms")
	flagRound := fs.Int("round-digits", -1, "Decimal places kept on every reading")
	flagPressureMode := fs.String("pressure-mode", "", "Pressure bar buckets: reference|corrected")
	flagContinue := fs.Bool("continue-on-error", false, "Log output errors instead of stopping")
	flagOutputs := fs.String("outputs", "", "Comma-separated outputs (console,mqtt,html,http,matrix,web)")
	flagOutputIntervals := fs.String("output-intervals", "", "Comma-separated output intervals e.g. matrix=10000,http=3600000")
	flagMQTTServer := fs.String("mqtt-server", "", "MQTT server (tcp://host:port)")
	flagMQTTUser := fs.String("mqtt-user", "", "MQTT username")
	flagMQTTPass := fs.String("mqtt-pass", "", "MQTT password")
	flagClientID := fs.String("mqtt-client-id", "", "MQTT client id")
	flagTopic := fs.String("mqtt-topic", "", "MQTT state topic, %s is replaced by the reading kind")
	flagHTMLPath := fs.String("html-path", "", "HTML document rewritten by the html output")
	flagHTTPURL := fs.String("http-url", "", "Endpoint the http output POSTs to")
	flagMatrixDriver := fs.String("matrix-driver", "", "LED matrix driver: sensehat|framebuffer|terminal")
	flagWebAddr := fs.String("web-addr", "", "Listen address of the web output")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()

	if *cfgPath != "" {
		b, err := os.ReadFile(*cfgPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if *flagSensorType != "" {
		cfg.SensorType = *flagSensorType
	}
	if *flagI2CBus != "" {
		cfg.I2CBus = *flagI2CBus
	}
	if *flagI2CAddStr != "" {
		v, err := parseIntOrHex(*flagI2CAddStr)
		if err != nil {
			return cfg, fmt.Errorf("i2c-address: %w", err)
		}
		cfg.I2CAddress = v
	}
	if *flagInterval != -1 {
		cfg.IntervalMs = *flagInterval
	}
	if *flagRound != -1 {
		cfg.RoundDigits = *flagRound
	}
	if *flagPressureMode != "" {
		cfg.PressureMode = *flagPressureMode
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "continue-on-error" {
			cfg.ContinueOnError = *flagContinue
		}
	})
	if *flagOutputs != "" {
		// convert simple CSV of types into structured OutputConfig entries
		parts := parseCSV(*flagOutputs)
		outs := make([]OutputConfig, 0, len(parts))
		for _, p := range parts {
			outs = append(outs, OutputConfig{Type: strings.ToLower(p)})
		}
		cfg.Outputs = outs
	}
	if *flagOutputIntervals != "" {
		intervals, err := parseKeyIntMap(*flagOutputIntervals)
		if err != nil {
			return cfg, fmt.Errorf("output-intervals: %w", err)
		}
		for i := range cfg.Outputs {
			if v, ok := intervals[cfg.Outputs[i].Type]; ok {
				cfg.Outputs[i].IntervalMs = v
			}
		}
	}
	// Apply MQTT flags to all mqtt outputs; if none exist, create one.
	if *flagMQTTServer != "" || *flagMQTTUser != "" || *flagMQTTPass != "" || *flagClientID != "" || *flagTopic != "" {
		apply := func(m *MQTTConfig) {
			if *flagMQTTServer != "" {
				m.Server = *flagMQTTServer
			}
			if *flagMQTTUser != "" {
				m.Username = *flagMQTTUser
			}
			if *flagMQTTPass != "" {
				m.Password = *flagMQTTPass
			}
			if *flagClientID != "" {
				m.ClientID = *flagClientID
			}
			if *flagTopic != "" {
				m.StateTopic = *flagTopic
			}
		}
		out := ensureOutput(&cfg, OutputMQTT)
		for _, o := range out {
			if o.MQTT == nil {
				o.MQTT = &MQTTConfig{}
			}
			apply(o.MQTT)
		}
	}
	if *flagHTMLPath != "" {
		for _, o := range ensureOutput(&cfg, OutputHTML) {
			if o.HTML == nil {
				o.HTML = &HTMLConfig{}
			}
			o.HTML.Path = *flagHTMLPath
		}
	}
	if *flagHTTPURL != "" {
		for _, o := range ensureOutput(&cfg, OutputHTTP) {
			if o.HTTP == nil {
				o.HTTP = &HTTPConfig{}
			}
			o.HTTP.URL = *flagHTTPURL
		}
	}
	if *flagMatrixDriver != "" {
		for _, o := range ensureOutput(&cfg, OutputMatrix) {
			if o.Matrix == nil {
				o.Matrix = &MatrixConfig{}
			}
			o.Matrix.Driver = *flagMatrixDriver
		}
	}
	if *flagWebAddr != "" {
		for _, o := range ensureOutput(&cfg, OutputWeb) {
			if o.Web == nil {
				o.Web = &WebConfig{}
			}
			o.Web.Addr = *flagWebAddr
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ensureOutput returns pointers to every output of type t, appending one
// when none is configured.
func ensureOutput(cfg *Config, t string) []*OutputConfig {
	var out []*OutputConfig
	for i := range cfg.Outputs {
		if strings.ToLower(cfg.Outputs[i].Type) == t {
			out = append(out, &cfg.Outputs[i])
		}
	}
	if len(out) == 0 {
		cfg.Outputs = append(cfg.Outputs, OutputConfig{Type: t})
		out = append(out, &cfg.Outputs[len(cfg.Outputs)-1])
	}
	return out
}

// ApplyDefaults fills the per-output blocks that were left empty.
func (c *Config) ApplyDefaults() {
	for i := range c.Outputs {
		o := &c.Outputs[i]
		o.Type = strings.ToLower(strings.TrimSpace(o.Type))
		if o.IntervalMs == 0 {
			if o.Type == OutputHTTP {
				o.IntervalMs = DefaultHTTPIntervalMs
			} else {
				o.IntervalMs = c.IntervalMs
			}
		}
		switch o.Type {
		case OutputMQTT:
			if o.MQTT == nil {
				o.MQTT = &MQTTConfig{}
			}
			if o.MQTT.Server == "" {
				o.MQTT.Server = DefaultMQTTServer
			}
			if o.MQTT.ClientID == "" {
				o.MQTT.ClientID = DefaultMQTTClientID
			}
			if o.MQTT.StateTopic == "" {
				o.MQTT.StateTopic = DefaultMQTTStateTopic
			}
		case OutputHTML:
			if o.HTML == nil {
				o.HTML = &HTMLConfig{}
			}
			if o.HTML.Path == "" {
				o.HTML.Path = DefaultHTMLPath
			}
			if o.HTML.TimeID == "" {
				o.HTML.TimeID = "time"
			}
			if o.HTML.TemperatureID == "" {
				o.HTML.TemperatureID = "temp"
			}
			if o.HTML.HumidityID == "" {
				o.HTML.HumidityID = "humidity"
			}
			if o.HTML.TimeLayout == "" {
				o.HTML.TimeLayout = "2006-01-02 15:04:05.000000"
			}
		case OutputHTTP:
			if o.HTTP == nil {
				o.HTTP = &HTTPConfig{}
			}
			if o.HTTP.URL == "" {
				o.HTTP.URL = DefaultHTTPURL
			}
			if o.HTTP.TimeoutMs == 0 {
				o.HTTP.TimeoutMs = DefaultHTTPTimeoutMs
			}
		case OutputMatrix:
			if o.Matrix == nil {
				o.Matrix = &MatrixConfig{}
			}
			if o.Matrix.Driver == "" {
				o.Matrix.Driver = MatrixSenseHAT
			}
			if o.Matrix.I2CBus == "" {
				o.Matrix.I2CBus = DefaultSenseHATBus
			}
			if o.Matrix.I2CAddress == 0 {
				o.Matrix.I2CAddress = DefaultSenseHATAddr
			}
			if o.Matrix.Device == "" {
				o.Matrix.Device = DefaultFramebuffer
			}
		case OutputWeb:
			if o.Web == nil {
				o.Web = &WebConfig{}
			}
			if o.Web.Addr == "" {
				o.Web.Addr = DefaultWebAddr
			}
		}
	}
}

func (c Config) Validate() error {
	switch c.SensorType {
	case SensorReal, SensorSimulation:
	default:
		return fmt.Errorf("unknown sensor type %q (want real|simulation)", c.SensorType)
	}
	if c.SensorType == SensorReal {
		if err := validI2CAddress(c.I2CAddress); err != nil {
			return fmt.Errorf("i2c-address: %w", err)
		}
	}
	if c.IntervalMs <= 0 {
		return errors.New("interval-ms must be > 0")
	}
	if c.RoundDigits < 0 || c.RoundDigits > 6 {
		return fmt.Errorf("round-digits must be 0-6, got %d", c.RoundDigits)
	}
	if _, err := indicator.ParsePressureMode(c.PressureMode); err != nil {
		return err
	}
	if len(c.Outputs) == 0 {
		return errors.New("at least one output is required")
	}
	for _, o := range c.Outputs {
		if o.IntervalMs < 0 {
			return fmt.Errorf("output %s: interval_ms must be >= 0", o.Type)
		}
		switch o.Type {
		case OutputConsole, OutputMQTT, OutputHTML, OutputHTTP, OutputWeb:
		case OutputMatrix:
			if o.Matrix != nil {
				switch o.Matrix.Driver {
				case MatrixSenseHAT:
					if err := validI2CAddress(o.Matrix.I2CAddress); err != nil {
						return fmt.Errorf("output matrix: i2c_address: %w", err)
					}
				case MatrixFramebuffer, MatrixTerminal:
				default:
					return fmt.Errorf("unknown matrix driver %q", o.Matrix.Driver)
				}
			}
		default:
			return fmt.Errorf("unknown output type %q", o.Type)
		}
	}
	return nil
}

// validI2CAddress accepts the 7-bit addresses outside the reserved blocks.
func validI2CAddress(a int) error {
	if a < 0x03 || a > 0x77 {
		return fmt.Errorf("0x%x is not a 7-bit device address (0x03-0x77)", a)
	}
	return nil
}

func parseIntOrHex(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 0)
		return int(v), err
	}
	v, err := strconv.Atoi(s)
	return v, err
}

func parseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseKeyIntMap parses "a=1,b=2" into a map.
func parseKeyIntMap(s string) (map[string]int, error) {
	out := map[string]int{}
	for _, p := range parseCSV(s) {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid entry '%s'", p)
		}
		v, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid value in '%s': %w", p, err)
		}
		out[strings.ToLower(strings.TrimSpace(kv[0]))] = v
	}
	return out, nil
}
