package logic

func (c *Controller) startGame() {
	c.setPhase(PhaseGameStartUp)
	c.playGameCue()
	c.Timers.Start(TimerGame, GameDuration)
	c.activateModule()
}

// activateModule lights a new target, different from the one just
// deactivated, and waits for it.
func (c *Controller) activateModule() {
	c.setPhase(PhaseGameActivateModule)
	c.active = RandomModule(c.active, c.Random)
	c.light(c.active)
	c.Instruct.Post(InstructEvent(c.active, c.score))
	c.Timers.Start(TimerModule, ModuleWindow)
	c.setPhase(PhaseGameWaitForTrigger)
}

func (c *Controller) runWaitForTrigger(ev Event) {
	if m, ok := moduleForEvent(ev.Type); ok {
		c.scoreTrigger(m)
		return
	}

	switch ev.Type {
	case EventNoTrigger:
		c.startInactivity()
		c.Timers.Stop(TimerGame)
		c.Timers.Stop(TimerModule)
		c.Timers.Stop(TimerBlinkLight)

	case EventTimeout:
		switch ev.Timer {
		case TimerGame:
			c.light(ModuleNone)
			c.endGame(ReasonTimeUp)
		case TimerNoTriggerLight:
			c.light(ModuleNone)
			c.endGame(ReasonInactive)
		case TimerNoTrigBlink:
			c.stepStrobe()
		case TimerModule:
			// Missed target: move on without a penalty.
			c.activateModule()
		case TimerBlinkLight:
			c.stepGameBlink()
		}
	}
}

// scoreTrigger handles a sensor trigger. Only the active module scores;
// anything else, or any trigger during the inactivity flourish, is ignored.
func (c *Controller) scoreTrigger(m Module) {
	if c.inactive || m != c.active {
		return
	}
	c.score++
	c.notify(Notice{Kind: NoticeScore, Module: m, Score: c.score})

	c.blinkModule = m
	c.blinkCount = 0
	if m == ModuleTouch {
		c.Timers.Start(TimerBlinkLight, TouchBlinkPeriod)
	} else {
		c.Timers.Start(TimerBlinkLight, BlinkPeriod)
	}
	c.activateModule()
}

func (c *Controller) stepGameBlink() {
	if c.blinkCount >= GameBlinkToggles {
		return
	}
	c.lightSingle(c.blinkModule, c.blinkCount%2 == 0)
	c.blinkCount++
	c.Timers.Start(TimerBlinkLight, BlinkPeriod)
}

func (c *Controller) endGame(reason string) {
	c.setPhase(PhaseGameEndGame)
	c.Timers.Stop(TimerGame)
	c.Timers.Stop(TimerModule)
	c.Timers.Stop(TimerBlinkLight)
	c.Timers.Stop(TimerNoTrigBlink)

	c.stopInstruct(GameOverText(c.score))
	c.playGameCue()
	c.notify(Notice{Kind: NoticeGameOver, Module: ModuleNone, Score: c.score, Reason: reason})

	c.score = 0
	c.active = ModuleNone
	c.inactive = false
	c.setPhase(PhaseIdle)
	c.Timers.Start(TimerIdleLight, IdleLightPeriod)
	c.Timers.Start(TimerStateEnd, StateEndDelay)
}
