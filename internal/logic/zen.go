package logic

func (c *Controller) runZen(ev Event) {
	if m, ok := moduleForEvent(ev.Type); ok {
		c.greet(m)
		return
	}

	switch ev.Type {
	case EventNoTrigger:
		c.startInactivity()
		c.Timers.Stop(TimerGame)
		c.Timers.Stop(TimerIdleLight)

	case EventTimeout:
		switch ev.Timer {
		case TimerBlinkLight:
			c.stepZenBlink()
		case TimerIdleLight:
			if c.zenIdleBlinks%2 == 0 {
				c.setLit(AllLights)
				c.Timers.Start(TimerIdleLight, ZenIdleLit)
			} else {
				c.light(ModuleNone)
				c.Timers.Start(TimerIdleLight, ZenIdleDark)
			}
			c.zenIdleBlinks++
		case TimerVibration:
			if c.zenVibrations%2 == 0 {
				c.Motor.Post(Event{Type: EventStartMotor})
				c.Timers.Start(TimerVibration, ZenMotorOn)
			} else {
				c.Motor.Post(Event{Type: EventStopMotor})
				c.Timers.Start(TimerVibration, ZenMotorOff)
			}
			c.zenVibrations++
		case TimerGame:
			c.endZen(TextNirvana, ReasonTimeUp)
			c.Timers.Start(TimerStateEnd, StateEndDelay)
		case TimerNoTriggerLight:
			c.endZen(TextWelcome, ReasonInactive)
			c.Timers.Start(TimerIdleLight, IdleLightPeriod)
			c.Timers.Start(TimerStateEnd, ZenInactiveRestart)
		case TimerNoTrigBlink:
			c.stepStrobe()
		}
	}
}

// greet reacts to a sensor in zen mode with its phrase, the zen cue and a
// blink of that module's light. Idle blinking pauses until the blink ends.
func (c *Controller) greet(m Module) {
	if c.inactive {
		return
	}
	c.Display.ShowString(ZenPhrase(m))
	c.playZenCue()
	c.notify(Notice{Kind: NoticeGreet, Module: m})

	c.blinkModule = m
	c.blinkCount = 0
	c.Timers.Stop(TimerIdleLight)
	c.Timers.Start(TimerBlinkLight, BlinkPeriod)
}

func (c *Controller) stepZenBlink() {
	if c.blinkCount >= ZenBlinkToggles {
		c.light(ModuleNone)
		c.Timers.Start(TimerIdleLight, IdleLightPeriod)
		return
	}
	if c.blinkCount%2 == 0 {
		c.light(c.blinkModule)
		c.Timers.Start(TimerBlinkLight, ZenBlinkLit)
	} else {
		c.light(ModuleNone)
		c.Timers.Start(TimerBlinkLight, ZenBlinkDark)
	}
	c.blinkCount++
}

func (c *Controller) endZen(text, reason string) {
	c.stopInstruct(text)
	c.Motor.Post(Event{Type: EventStopMotor})
	c.notify(Notice{Kind: NoticeZenOver, Module: ModuleNone, Reason: reason})
	c.inactive = false
	c.setPhase(PhaseIdle)
}
