package intake

import (
	"testing"

	"github.com/infohelper/euwork-bot/core/telegram/state"
)

var testPrompts = Prompts{
	Welcome:        "welcome",
	AskAge:         "age?",
	AskCountry:     "country?",
	AskCitizenship: "citizenship?",
}

func testMachine() Machine {
	return Machine{RestartCommand: "/start", Prompts: testPrompts}
}

func profileAt(stage state.Stage) state.Profile {
	p := state.NewProfile(10)
	p.Stage = stage
	switch stage {
	case state.StageComplete:
		p.Citizenship = "Kyrgyzstan"
		fallthrough
	case state.StageAskedCitizenship:
		p.Country = "Czechia"
		fallthrough
	case state.StageAskedCountry:
		p.Age = "40"
	}
	p.History = []state.Turn{{Role: state.RoleUser, Text: "old"}}
	return p
}

var allStages = []state.Stage{
	state.StageNew,
	state.StageAskedAge,
	state.StageAskedCountry,
	state.StageAskedCitizenship,
	state.StageComplete,
}

func TestStepByStepFlow(t *testing.T) {
	m := testMachine()
	p := state.NewProfile(1)

	st := m.Step(p, "hello")
	if st.Profile.Stage != state.StageAskedAge || st.Reply != "age?" || st.Generate {
		t.Fatalf("NEW step = %+v", st)
	}

	st = m.Step(st.Profile, "twenty five")
	if st.Profile.Stage != state.StageAskedCountry || st.Profile.Age != "twenty five" || st.Reply != "country?" {
		t.Fatalf("ASKED_AGE step = %+v", st)
	}

	st = m.Step(st.Profile, "Poland")
	if st.Profile.Stage != state.StageAskedCitizenship || st.Profile.Country != "Poland" || st.Reply != "citizenship?" {
		t.Fatalf("ASKED_COUNTRY step = %+v", st)
	}

	st = m.Step(st.Profile, "Uzbekistan")
	if st.Profile.Stage != state.StageComplete || st.Profile.Citizenship != "Uzbekistan" || st.Reply != "" || !st.Generate {
		t.Fatalf("ASKED_CITIZENSHIP step = %+v", st)
	}

	st = m.Step(st.Profile, "What about Germany?")
	if st.Profile.Stage != state.StageComplete || !st.Generate || st.Reply != "" {
		t.Fatalf("COMPLETE step = %+v", st)
	}
	if st.Profile.Age != "twenty five" || st.Profile.Country != "Poland" {
		t.Fatalf("fields changed in COMPLETE: %+v", st.Profile)
	}
}

func TestShortcutFromEveryStage(t *testing.T) {
	m := testMachine()
	for _, stage := range allStages {
		for _, text := range []string{"25 Poland Uzbekistan", "25, Poland, Uzbekistan"} {
			st := m.Step(profileAt(stage), text)
			if !st.Shortcut || !st.Generate || st.Reply != "" {
				t.Fatalf("%s %q: step = %+v", stage, text, st)
			}
			p := st.Profile
			if p.Stage != state.StageComplete || p.Age != "25" || p.Country != "Poland" || p.Citizenship != "Uzbekistan" {
				t.Fatalf("%s %q: profile = %+v", stage, text, p)
			}
		}
	}
}

func TestRestartFromEveryStage(t *testing.T) {
	m := testMachine()
	for _, stage := range allStages {
		st := m.Step(profileAt(stage), "/start")
		p := st.Profile
		if !st.Restarted || st.Reply != "welcome" || st.Generate {
			t.Fatalf("%s: step = %+v", stage, st)
		}
		if p.Stage != state.StageNew || p.Age != "" || p.Country != "" || p.Citizenship != "" || len(p.History) != 0 {
			t.Fatalf("%s: profile not reset: %+v", stage, p)
		}
		if p.ChatID != 10 {
			t.Fatalf("%s: chat id lost", stage)
		}
	}
}

func TestRestartWinsOverShortcutPayload(t *testing.T) {
	st := testMachine().Step(profileAt(state.StageComplete), "/start 25 Poland")
	if !st.Restarted || st.Profile.Stage != state.StageNew {
		t.Fatalf("step = %+v", st)
	}
}

func TestEmptyTextIgnored(t *testing.T) {
	m := testMachine()
	for _, stage := range allStages {
		before := profileAt(stage)
		st := m.Step(before, "   \n\t")
		if st.Changed || st.Reply != "" || st.Generate {
			t.Fatalf("%s: empty text produced %+v", stage, st)
		}
		if st.Profile.Stage != stage {
			t.Fatalf("%s: stage moved to %s", stage, st.Profile.Stage)
		}
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	p := profileAt(state.StageComplete)
	_ = testMachine().Step(p, "/start")
	if p.Stage != state.StageComplete || p.Age != "40" || len(p.History) != 1 {
		t.Fatalf("input profile mutated: %+v", p)
	}
}

func TestStagesOnlyMoveForward(t *testing.T) {
	order := map[state.Stage]int{}
	for i, s := range allStages {
		order[s] = i
	}
	m := testMachine()
	inputs := []string{"hi", "25", "x", "Poland", "25 Poland Uzbekistan", "again", "???"}
	for _, stage := range allStages {
		for _, in := range inputs {
			st := m.Step(profileAt(stage), in)
			if order[st.Profile.Stage] < order[stage] {
				t.Fatalf("%s + %q moved back to %s", stage, in, st.Profile.Stage)
			}
		}
	}
}
