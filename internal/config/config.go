// Package config loads daemon settings from the environment and command line.
// Flags override environment variables, which override the defaults.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sweeney/sensory-game/internal/gpio"
	"github.com/sweeney/sensory-game/internal/logic"
	"github.com/sweeney/sensory-game/internal/motor"
	"github.com/sweeney/sensory-game/internal/status"
	"periph.io/x/conn/v3/physic"
)

// Config holds sensory-game daemon configuration.
type Config struct {
	Poll       time.Duration `env:"SENSORY_POLL"        envDefault:"10ms"`
	AnalogPoll time.Duration `env:"SENSORY_ANALOG_POLL" envDefault:"100ms"`
	Heartbeat  time.Duration `env:"SENSORY_HEARTBEAT"   envDefault:"15m"`

	Broker      string `env:"SENSORY_MQTT_BROKER"    envDefault:"tcp://192.168.1.200:1883"`
	ClientID    string `env:"SENSORY_MQTT_CLIENT_ID" envDefault:"sensory-game"`
	TopicPrefix string `env:"SENSORY_MQTT_PREFIX"    envDefault:"sensory/game"`

	HTTPAddr string `env:"SENSORY_HTTP_ADDR" envDefault:":80"`
	DBPath   string `env:"SENSORY_DB_PATH"   envDefault:"/var/lib/sensory-game/history.db"`

	Chip      string `env:"SENSORY_GPIO_CHIP"   envDefault:"gpiochip0"`
	InputPins []int  `env:"SENSORY_INPUT_PINS"  envDefault:"17,27,22,23,24,25"`
	LightPins []int  `env:"SENSORY_LIGHT_PINS"  envDefault:"5,6,13,19"`
	AudioPins []int  `env:"SENSORY_AUDIO_PINS"  envDefault:"20,21"`

	PWMPin    string        `env:"SENSORY_PWM_PIN"    envDefault:"GPIO18"`
	PWMPeriod time.Duration `env:"SENSORY_PWM_PERIOD" envDefault:"5ms"`

	ADCBus     string `env:"SENSORY_ADC_BUS"`
	ADCAddr    int    `env:"SENSORY_ADC_ADDR"       envDefault:"72"` // 0x48
	ADCChannel int    `env:"SENSORY_ADC_CHANNEL"    envDefault:"0"`
	ADCMaxMV   int    `env:"SENSORY_ADC_MAX_MV"     envDefault:"3300"`
	FullScale  int    `env:"SENSORY_ADC_FULL_SCALE" envDefault:"1023"`

	Seed    int64 `env:"SENSORY_SEED"`
	Sim     bool  `env:"SENSORY_SIM"`
	Speaker bool  `env:"SENSORY_SPEAKER"`

	PrintState bool
}

// Parse loads the environment into a Config, then applies flags from args.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.DurationVar(&cfg.Poll, "poll", cfg.Poll, "Sensor polling interval")
	fs.DurationVar(&cfg.AnalogPoll, "analog-poll", cfg.AnalogPoll, "Intensity knob polling interval")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&cfg.Broker, "broker", cfg.Broker, "MQTT broker address (empty to disable)")
	fs.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "MQTT client id")
	fs.StringVar(&cfg.TopicPrefix, "topic-prefix", cfg.TopicPrefix, "MQTT topic prefix")
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP status address (empty to disable)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite session history path (empty to disable)")
	fs.StringVar(&cfg.Chip, "gpio-chip", cfg.Chip, "GPIO character device")
	fs.Var((*intList)(&cfg.InputPins), "input-pins", "BCM pins for touch,shake,squeeze,wave,game,zen")
	fs.Var((*intList)(&cfg.LightPins), "light-pins", "BCM pins for the touch,shake,squeeze,wave lights")
	fs.Var((*intList)(&cfg.AudioPins), "audio-pins", "BCM pins for the game,zen sound triggers")
	fs.StringVar(&cfg.PWMPin, "pwm-pin", cfg.PWMPin, "PWM pin for the motor")
	fs.DurationVar(&cfg.PWMPeriod, "pwm-period", cfg.PWMPeriod, "Motor PWM period")
	fs.StringVar(&cfg.ADCBus, "adc-bus", cfg.ADCBus, "I2C bus of the knob's ADS1015 (empty for the first)")
	fs.IntVar(&cfg.ADCAddr, "adc-addr", cfg.ADCAddr, "I2C address of the ADS1015")
	fs.IntVar(&cfg.ADCChannel, "adc-channel", cfg.ADCChannel, "ADS1015 channel of the knob (0-3)")
	fs.IntVar(&cfg.ADCMaxMV, "adc-max-mv", cfg.ADCMaxMV, "Knob voltage that reads as full scale, in millivolts")
	fs.IntVar(&cfg.FullScale, "adc-full-scale", cfg.FullScale, "Maximum knob reading")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Module selection seed (0 for time based)")
	fs.BoolVar(&cfg.Sim, "sim", cfg.Sim, "Run the terminal simulator instead of hardware")
	fs.BoolVar(&cfg.Speaker, "speaker", cfg.Speaker, "Play sound cues on the host speaker")
	fs.BoolVar(&cfg.PrintState, "print-state", false, "Print current inputs and exit")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that would fail later in less obvious ways.
func (c Config) Validate() error {
	if c.Poll <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.Poll)
	}
	if c.AnalogPoll < c.Poll {
		return fmt.Errorf("analog poll %v must not be shorter than poll %v", c.AnalogPoll, c.Poll)
	}
	if c.Heartbeat < 0 {
		return fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat)
	}
	if c.FullScale <= 0 {
		return fmt.Errorf("adc full scale must be positive, got %d", c.FullScale)
	}
	if c.ADCChannel < 0 || c.ADCChannel > 3 {
		return fmt.Errorf("adc channel must be 0-3, got %d", c.ADCChannel)
	}
	if c.ADCAddr <= 0 || c.ADCAddr > 0x7f {
		return fmt.Errorf("adc address %#x is not a 7-bit i2c address", c.ADCAddr)
	}
	if c.ADCMaxMV <= 0 {
		return fmt.Errorf("adc max voltage must be positive, got %dmV", c.ADCMaxMV)
	}
	if _, err := c.Pins(); err != nil {
		return err
	}
	return nil
}

// Pins converts the configured pin lists.
func (c Config) Pins() (gpio.Pins, error) {
	var p gpio.Pins
	if len(c.InputPins) != logic.NumChannels {
		return p, fmt.Errorf("need %d input pins, got %d", logic.NumChannels, len(c.InputPins))
	}
	if len(c.LightPins) != logic.NumModules {
		return p, fmt.Errorf("need %d light pins, got %d", logic.NumModules, len(c.LightPins))
	}
	if len(c.AudioPins) != len(p.Audio) {
		return p, fmt.Errorf("need %d audio pins, got %d", len(p.Audio), len(c.AudioPins))
	}
	copy(p.Inputs[:], c.InputPins)
	copy(p.Lights[:], c.LightPins)
	copy(p.Audio[:], c.AudioPins)

	seen := make(map[int]bool)
	for _, pin := range append(append(append([]int{}, c.InputPins...), c.LightPins...), c.AudioPins...) {
		if seen[pin] {
			return p, fmt.Errorf("pin %d assigned twice", pin)
		}
		seen[pin] = true
	}
	return p, nil
}

// Knob returns the converter settings for the intensity knob.
func (c Config) Knob() motor.KnobOptions {
	return motor.KnobOptions{
		Bus:        c.ADCBus,
		Addr:       uint16(c.ADCAddr),
		Channel:    c.ADCChannel,
		MaxVoltage: physic.ElectricPotential(c.ADCMaxMV) * physic.MilliVolt,
		FullScale:  c.FullScale,
	}
}

// Status returns the settings shown on the status page.
func (c Config) Status() status.Config {
	return status.Config{
		PollMs:      c.Poll.Milliseconds(),
		AnalogMs:    c.AnalogPoll.Milliseconds(),
		HeartbeatMs: c.Heartbeat.Milliseconds(),
		Broker:      c.Broker,
		HTTPPort:    c.HTTPAddr,
		Simulated:   c.Sim,
	}
}

// network mirrors the variables pi-helper writes to /run/pi-helper.env.
type network struct {
	Type       string `env:"TYPE"`
	IP         string `env:"IP"`
	Status     string `env:"STATUS"`
	Gateway    string `env:"GATEWAY"`
	WifiStatus string `env:"WIFI_STATUS"`
	SSID       string `env:"WIFI_SSID"`
}

// ReadNetwork reads NETWORK_* variables. It returns nil when no network
// status is published.
func ReadNetwork() *status.NetworkInfo {
	var n network
	if err := env.ParseWithOptions(&n, env.Options{Prefix: "NETWORK_"}); err != nil || n.Status == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       n.Type,
		IP:         n.IP,
		Status:     n.Status,
		Gateway:    n.Gateway,
		WifiStatus: n.WifiStatus,
		SSID:       n.SSID,
	}
}

// intList is a comma separated flag value.
type intList []int

func (l *intList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(s string) error {
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("invalid pin %q", part)
		}
		out = append(out, v)
	}
	*l = out
	return nil
}
