package logic

// MotorState is the state of the vibration motor machine.
type MotorState string

const (
	MotorOff MotorState = "OFF"
	MotorOn  MotorState = "ON"
)

const (
	// MinDuty is the lowest duty cycle at which the motor can be felt.
	MinDuty = 15
	// MaxDuty is the duty cycle at full knob.
	MaxDuty = 100
	// DefaultFullScale is the 10-bit converter's maximum reading.
	DefaultFullScale = 1023
)

// DutyFor maps an analog reading in [0, fullScale] onto [MinDuty, MaxDuty].
func DutyFor(reading, fullScale int) int {
	if fullScale <= 0 {
		fullScale = DefaultFullScale
	}
	return MinDuty + reading*(MaxDuty-MinDuty)/fullScale
}

// Vibration drives the motor. While On its duty follows the intensity knob.
type Vibration struct {
	state     MotorState
	pwm       PWM
	analog    Analog
	fullScale int
	reading   int
	duty      int
}

// NewVibration creates the motor machine in the Off state.
func NewVibration(pwm PWM, analog Analog, fullScale int) *Vibration {
	if fullScale <= 0 {
		fullScale = DefaultFullScale
	}
	return &Vibration{
		state:     MotorOff,
		pwm:       pwm,
		analog:    analog,
		fullScale: fullScale,
	}
}

// Run processes Init, StartMotor and StopMotor. Both commands are idempotent.
func (v *Vibration) Run(ev Event) Event {
	switch ev.Type {
	case EventInit:
		v.pwm.SetDuty(0)
		v.sample()
		v.duty = 0
		v.state = MotorOff
	case EventStartMotor:
		// Off -> On applies the duty in the same step; On recomputes it.
		v.state = MotorOn
		v.sample()
		v.duty = DutyFor(v.reading, v.fullScale)
		v.pwm.SetDuty(v.duty)
	case EventStopMotor:
		if v.state == MotorOn {
			v.pwm.SetDuty(0)
			v.duty = 0
			v.state = MotorOff
		}
	}
	return NoEvent
}

// CheckAnalog samples the knob and reports whether the reading changed.
// A change while On re-applies StartMotor so the duty follows the knob.
func (v *Vibration) CheckAnalog() bool {
	prev := v.reading
	if !v.sample() || v.reading == prev {
		return false
	}
	if v.state == MotorOn {
		v.Run(Event{Type: EventStartMotor})
	}
	return true
}

// Query returns the current motor state.
func (v *Vibration) Query() MotorState {
	return v.state
}

// Duty returns the duty cycle last applied by this machine.
func (v *Vibration) Duty() int {
	return v.duty
}

// Reading returns the last analog sample.
func (v *Vibration) Reading() int {
	return v.reading
}

// sample reads the knob, keeping the previous value on error.
func (v *Vibration) sample() bool {
	if v.analog == nil {
		return false
	}
	r, err := v.analog.Read()
	if err != nil {
		return false
	}
	if r < 0 {
		r = 0
	}
	if r > v.fullScale {
		r = v.fullScale
	}
	v.reading = r
	return true
}
