package logic

import (
	"fmt"
	"strings"
)

// Fixed display lines. The trailing spaces pad to the 16-column display.
const (
	TextWelcome  = "WELCOME!        "
	TextRelax    = "Relax   Enjoy   "
	TextInactive = "Inactive        "
	TextNirvana  = "NIRVANA!        "
	TextBlank    = ""
)

// instructionLayout holds the name and the single-digit padding for a module.
// Scores of two or more digits drop one column of padding.
var instructionLayout = [NumModules]struct {
	name string
	pad  int
}{
	ModuleTouch:   {"Touch", 7},
	ModuleShake:   {"Shake", 7},
	ModuleSqueeze: {"Squeeze", 6},
	ModuleWave:    {"Wave", 7},
}

// InstructionText returns the game instruction line for the active module.
// It returns an empty string for ModuleNone.
func InstructionText(m Module, score int) string {
	if m < 0 || m >= ModuleNone {
		return ""
	}
	l := instructionLayout[m]
	pad := l.pad
	if score >= 10 {
		pad--
	}
	return fmt.Sprintf("%s%s%dpt", l.name, strings.Repeat(" ", pad), score)
}

// GameOverText returns the final score line.
func GameOverText(score int) string {
	if score >= 10 {
		return fmt.Sprintf("GAMEOVER   %dpts", score)
	}
	return fmt.Sprintf("GAMEOVER    %dpts", score)
}

// ZenPhrase returns the greeting shown when m is triggered in zen mode.
func ZenPhrase(m Module) string {
	switch m {
	case ModuleTouch:
		return "Boop"
	case ModuleShake:
		return "Nice To Meet You"
	case ModuleSqueeze:
		return "OUCH"
	case ModuleWave:
		return "Hello"
	}
	return ""
}
