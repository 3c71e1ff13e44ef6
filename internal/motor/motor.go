// Package motor drives the vibration motor PWM pin and reads the intensity
// knob from an ADS1015 converter, both through periph.io.
package motor

import (
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// DefaultPeriod is the PWM period (200 Hz).
const DefaultPeriod = 5 * time.Millisecond

// Defaults for a Raspberry Pi with the knob on an ADS1015 at 0x48.
const (
	DefaultPin        = "GPIO18"
	DefaultADCAddr    = 0x48
	DefaultMaxVoltage = 3300 * physic.MilliVolt
)

// knobRate is the converter's sampling rate; the daemon reads every 100ms.
const knobRate = 10 * physic.Hertz

var initHost = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// PWM is the motor's PWM pin.
type PWM struct {
	pin  gpio.PinOut
	freq physic.Frequency

	mu   sync.Mutex
	duty int
}

// NewPWM opens the named pin and starts it at zero duty.
func NewPWM(name string, period time.Duration) (*PWM, error) {
	if err := initHost(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("pwm pin %q not found", name)
	}
	return newPWM(pin, period)
}

func newPWM(pin gpio.PinOut, period time.Duration) (*PWM, error) {
	if period <= 0 {
		period = DefaultPeriod
	}
	p := &PWM{pin: pin, freq: physic.PeriodToFrequency(period)}
	if err := pin.PWM(0, p.freq); err != nil {
		return nil, fmt.Errorf("start pwm on %s: %w", pin, err)
	}
	return p, nil
}

// SetDuty sets the duty cycle in percent, clamped to [0, 100].
func (p *PWM) SetDuty(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if err := p.pin.PWM(dutyOf(percent), p.freq); err != nil {
		log.Printf("motor: set duty %d%%: %v", percent, err)
		return
	}
	p.mu.Lock()
	p.duty = percent
	p.mu.Unlock()
}

// Duty returns the last duty cycle written successfully.
func (p *PWM) Duty() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// Close stops the motor and drives the pin low.
func (p *PWM) Close() error {
	var errs []error
	if err := p.pin.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("halt: %w", err))
	}
	if err := p.pin.Out(gpio.Low); err != nil {
		errs = append(errs, fmt.Errorf("drive low: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func dutyOf(percent int) gpio.Duty {
	return gpio.DutyMax * gpio.Duty(percent) / 100
}

// sampler is the part of an ADC pin the knob uses.
type sampler interface {
	Read() (analog.Sample, error)
	Halt() error
}

// KnobOptions selects the converter channel and the voltage that reads as
// full scale.
type KnobOptions struct {
	Bus        string // empty for the first I2C bus
	Addr       uint16
	Channel    int
	MaxVoltage physic.ElectricPotential
	FullScale  int
}

// Knob reads the intensity knob and scales it to [0, FullScale].
type Knob struct {
	pin       sampler
	max       physic.ElectricPotential
	fullScale int
	closers   []func() error
}

var channels = []ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

// NewKnob opens the I2C bus and the converter and checks that the channel
// can be read.
func NewKnob(o KnobOptions) (*Knob, error) {
	if o.Channel < 0 || o.Channel >= len(channels) {
		return nil, fmt.Errorf("adc channel must be 0-3, got %d", o.Channel)
	}
	if o.MaxVoltage <= 0 {
		o.MaxVoltage = DefaultMaxVoltage
	}
	if o.Addr == 0 {
		o.Addr = DefaultADCAddr
	}
	if err := initHost(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	bus, err := i2creg.Open(o.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", o.Bus, err)
	}
	opts := ads1x15.DefaultOpts
	opts.I2cAddress = o.Addr
	dev, err := ads1x15.NewADS1015(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open ads1015 at %#x: %w", o.Addr, err)
	}
	pin, err := dev.PinForChannel(channels[o.Channel], o.MaxVoltage, knobRate, ads1x15.SaveEnergy)
	if err != nil {
		dev.Halt()
		bus.Close()
		return nil, fmt.Errorf("open adc channel %d: %w", o.Channel, err)
	}

	k := newKnob(pin, o.MaxVoltage, o.FullScale)
	k.closers = append(k.closers, dev.Halt, bus.Close)
	if _, err := k.Read(); err != nil {
		k.Close()
		return nil, err
	}
	return k, nil
}

func newKnob(pin sampler, max physic.ElectricPotential, fullScale int) *Knob {
	if fullScale <= 0 {
		fullScale = 1023
	}
	return &Knob{pin: pin, max: max, fullScale: fullScale}
}

// Read returns the knob position in [0, FullScale].
func (k *Knob) Read() (int, error) {
	s, err := k.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("read adc: %w", err)
	}
	v := int(int64(s.V) * int64(k.fullScale) / int64(k.max))
	if v < 0 {
		v = 0
	}
	if v > k.fullScale {
		v = k.fullScale
	}
	return v, nil
}

// Close halts the channel, the converter and the bus.
func (k *Knob) Close() error {
	var errs []error
	if err := k.pin.Halt(); err != nil {
		errs = append(errs, err)
	}
	for _, c := range k.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	k.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
