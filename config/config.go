package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
	"vled/frequency"
	"vled/gpioled"
	"vled/register"
	"vled/util"

	"gopkg.in/yaml.v3"
)

const DefaultGreeting = "Now connected to Lab 4, Virtual LED..."

type Config struct {
	Web          WebConfig       `yaml:"web"`
	Device       DeviceConfig    `yaml:"device"`
	Writer       *DeviceConfig   `yaml:"writer"`
	Registers    RegistersConfig `yaml:"registers"`
	PollInterval time.Duration   `yaml:"poll_interval"`
	Frequency    FrequencyConfig `yaml:"frequency"`
	GPIO         GPIOConfig      `yaml:"gpio"`
	Record       RecordConfig    `yaml:"record"`
	Sniffd       SniffdConfig    `yaml:"sniffd"`
}

type WebConfig struct {
	Listen      string `yaml:"listen"`
	BrowserHost string `yaml:"browser_host"`
	OpenBrowser bool   `yaml:"open_browser"`
	Greeting    string `yaml:"greeting"`
}

// DeviceConfig selects a register driver and its target.
type DeviceConfig struct {
	Driver          string `yaml:"driver"`
	register.Target `yaml:",inline"`
}

type RegistersConfig struct {
	Read  Address `yaml:"read"`
	Write Address `yaml:"write"`
}

type FrequencyConfig struct {
	Min          *int   `yaml:"min"`
	Max          int    `yaml:"max"`
	Initial      *int   `yaml:"initial"`
	CounterScale uint32 `yaml:"counter_scale"`
}

type GPIOConfig struct {
	Enable         bool `yaml:"enable"`
	gpioled.Config `yaml:",inline"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

// SniffdConfig configures the sniffer service (vledsniff).
type SniffdConfig struct {
	Listen      string        `yaml:"listen"`
	Interval    time.Duration `yaml:"interval"`
	MaxReadings int           `yaml:"max_readings"`
	Device      DeviceConfig  `yaml:"device"`
	Address     Address       `yaml:"address"`
}

// Address is a register address. YAML accepts 0xFF, 255 or "0xFF".
type Address uint32

func (a *Address) UnmarshalYAML(value *yaml.Node) error {
	n, err := strconv.ParseUint(value.Value, 0, 32)
	if err != nil {
		return fmt.Errorf("line %d: invalid register address %q", value.Line, value.Value)
	}
	*a = Address(n)
	return nil
}

func (a Address) MarshalYAML() (interface{}, error) {
	return a.String(), nil
}

func (a Address) String() string {
	return fmt.Sprintf("0x%X", uint32(a))
}

func intPtr(n int) *int { return &n }

func Default() Config {
	return Config{
		Web: WebConfig{
			Listen:      "0.0.0.0:3000",
			BrowserHost: "127.0.0.1",
			OpenBrowser: true,
			Greeting:    DefaultGreeting,
		},
		Device: DeviceConfig{
			Driver: "sniffer",
			Target: register.Target{Name: "127.0.0.1:30001"},
		},
		Registers: RegistersConfig{
			Read:  0xFF,
			Write: 0xFF,
		},
		PollInterval: 100 * time.Millisecond,
		Frequency: FrequencyConfig{
			Min:          intPtr(frequency.DefaultMin),
			Max:          frequency.DefaultMax,
			Initial:      intPtr(frequency.DefaultInitial),
			CounterScale: frequency.DefaultCounterScale,
		},
		GPIO: GPIOConfig{
			Config: gpioled.Config{Chip: "gpiochip0"},
		},
		Sniffd: SniffdConfig{
			Listen:      "127.0.0.1:30001",
			Interval:    10 * time.Millisecond,
			MaxReadings: 0xFFFF,
			Device: DeviceConfig{
				Driver: "devmem",
				Target: register.Target{Name: "/dev/mem", Options: map[string]string{"writable": "false"}},
			},
			Address: 0xFF,
		},
	}
}

// Load reads path over the defaults (an empty path uses only the defaults),
// applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides settings from VLED_* variables. PORT is honoured for the
// web listener, as hosting platforms set it.
func (c *Config) applyEnv(getenv func(string) string) error {
	if port := getenv("PORT"); port != "" {
		host, _, err := net.SplitHostPort(c.Web.Listen)
		if err != nil {
			host = ""
		}
		c.Web.Listen = net.JoinHostPort(host, port)
	}
	c.Web.Listen = util.OrElse(getenv("VLED_WEB_LISTEN"), c.Web.Listen)
	c.Web.BrowserHost = util.OrElse(getenv("VLED_WEB_BROWSER_HOST"), c.Web.BrowserHost)
	if s := getenv("VLED_OPEN_BROWSER"); s != "" {
		c.Web.OpenBrowser = util.IsTruthy(s)
	}

	if s := getenv("VLED_DRIVER"); s != "" {
		if s != c.Device.Driver {
			// a different driver does not understand the old target:
			c.Device.Target = register.Target{}
		}
		c.Device.Driver = s
	}
	c.Device.Name = util.OrElse(getenv("VLED_TARGET"), c.Device.Name)

	if s := getenv("VLED_READ_ADDRESS"); s != "" {
		n, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return fmt.Errorf("config: VLED_READ_ADDRESS=%q: %w", s, err)
		}
		c.Registers.Read = Address(n)
	}
	if s := getenv("VLED_WRITE_ADDRESS"); s != "" {
		n, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return fmt.Errorf("config: VLED_WRITE_ADDRESS=%q: %w", s, err)
		}
		c.Registers.Write = Address(n)
	}
	if s := getenv("VLED_RECORD"); s != "" {
		c.Record.Enable = true
		c.Record.Path = s
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Web.Listen == "" {
		return fmt.Errorf("web.listen is required")
	}
	if _, _, err := net.SplitHostPort(c.Web.Listen); err != nil {
		return fmt.Errorf("web.listen: %w", err)
	}
	if c.Device.Driver == "" {
		return fmt.Errorf("device.driver is required")
	}
	if c.Writer != nil && c.Writer.Driver == "" {
		return fmt.Errorf("writer.driver is required when writer is set")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}

	if c.Frequency.Min == nil {
		c.Frequency.Min = intPtr(frequency.DefaultMin)
	}
	if c.Frequency.Max == 0 {
		c.Frequency.Max = frequency.DefaultMax
	}
	if c.Frequency.Initial == nil {
		c.Frequency.Initial = intPtr(frequency.DefaultInitial)
	}
	if c.Frequency.CounterScale == 0 {
		c.Frequency.CounterScale = frequency.DefaultCounterScale
	}
	r := c.Frequency.Range()
	if err := r.Validate(); err != nil {
		return err
	}
	if err := frequency.CheckScale(r, frequency.Scale(c.Frequency.CounterScale)); err != nil {
		return err
	}

	if c.GPIO.Enable && c.GPIO.Line == "" {
		return fmt.Errorf("gpio.line is required when gpio.enable is true")
	}
	if c.Record.Enable && c.Record.Path == "" {
		return fmt.Errorf("record.path is required when record.enable is true")
	}

	if c.Sniffd.Interval <= 0 {
		c.Sniffd.Interval = 10 * time.Millisecond
	}
	if c.Sniffd.MaxReadings < 0 {
		return fmt.Errorf("sniffd.max_readings must be >= 0")
	}
	return nil
}

func (f FrequencyConfig) Range() frequency.Range {
	r := frequency.DefaultRange()
	if f.Min != nil {
		r.Min = *f.Min
	}
	if f.Max != 0 {
		r.Max = f.Max
	}
	return r
}

func (f FrequencyConfig) InitialValue() int {
	if f.Initial == nil {
		return frequency.DefaultInitial
	}
	return *f.Initial
}

// WriterDevice returns the device frequency writes go to: Writer when set,
// otherwise Device.
func (c *Config) WriterDevice() DeviceConfig {
	if c.Writer != nil {
		return *c.Writer
	}
	return c.Device
}

// BrowserURL is the address opened in the browser.
func (c *Config) BrowserURL() string {
	_, port, err := net.SplitHostPort(c.Web.Listen)
	if err != nil {
		port = "3000"
	}
	return fmt.Sprintf("http://%s/", net.JoinHostPort(c.Web.BrowserHost, port))
}
