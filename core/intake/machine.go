package intake

import (
	"strings"

	"github.com/infohelper/euwork-bot/core/telegram/state"
)

// Prompts are the fixed texts sent while collecting a profile.
type Prompts struct {
	Welcome        string
	AskAge         string
	AskCountry     string
	AskCitizenship string
}

// Machine is the pure intake transition function.
type Machine struct {
	RestartCommand string
	Prompts        Prompts
}

// Step is the outcome of feeding one message to the machine.
type Step struct {
	Profile state.Profile
	// Reply is a fixed prompt to send, empty when none.
	Reply string
	// Generate asks for a model reply to the message using Profile.
	Generate bool
	// Changed is false when the message was ignored.
	Changed   bool
	Restarted bool
	Shortcut  bool
}

// Step computes the next profile for text. p is not modified.
func (m Machine) Step(p state.Profile, text string) Step {
	text = strings.TrimSpace(text)
	if text == "" {
		return Step{Profile: p}
	}
	next := p.Clone()
	if next.Stage == "" {
		next.Stage = state.StageNew
	}

	if IsCommand(text, m.RestartCommand) {
		next.Reset()
		return Step{Profile: next, Reply: m.Prompts.Welcome, Changed: true, Restarted: true}
	}

	if age, country, citizenship, ok := ParseShortcut(text); ok {
		next.Age, next.Country, next.Citizenship = age, country, citizenship
		next.Stage = state.StageComplete
		return Step{Profile: next, Generate: true, Changed: true, Shortcut: true}
	}

	switch next.Stage {
	case state.StageAskedAge:
		next.Age = text
		next.Stage = state.StageAskedCountry
		return Step{Profile: next, Reply: m.Prompts.AskCountry, Changed: true}
	case state.StageAskedCountry:
		next.Country = text
		next.Stage = state.StageAskedCitizenship
		return Step{Profile: next, Reply: m.Prompts.AskCitizenship, Changed: true}
	case state.StageAskedCitizenship:
		next.Citizenship = text
		next.Stage = state.StageComplete
		return Step{Profile: next, Generate: true, Changed: true}
	case state.StageComplete:
		return Step{Profile: next, Generate: true, Changed: true}
	default:
		next.Stage = state.StageAskedAge
		return Step{Profile: next, Reply: m.Prompts.AskAge, Changed: true}
	}
}
