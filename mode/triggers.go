package mode

import (
	"regexp"
	"strings"

	"github.com/grovetools/warden/config"
	"github.com/grovetools/warden/state"
)

// Signal is a trigger phrase category found in a prompt.
type Signal int

const (
	SignalEmergencyStop Signal = iota
	SignalDiscuss
	SignalImplement
	SignalBypassOn
	SignalBypassOff
)

func (s Signal) String() string {
	switch s {
	case SignalEmergencyStop:
		return "emergency_stop"
	case SignalDiscuss:
		return "discuss"
	case SignalImplement:
		return "implement"
	case SignalBypassOn:
		return "bypass_on"
	case SignalBypassOff:
		return "bypass_off"
	default:
		return "unknown"
	}
}

// phraseGroup is the compiled phrases of one signal.
type phraseGroup struct {
	signal   Signal
	patterns []*regexp.Regexp
}

// Detector recognizes configured trigger phrases. Build it once per
// configuration; Detect is safe for concurrent use.
type Detector struct {
	groups []phraseGroup
}

// NewDetector compiles the trigger phrases. Phrases match on word boundaries;
// emergency stop phrases are case-sensitive, the others are not.
func NewDetector(triggers config.TriggersConfig) *Detector {
	specs := []struct {
		signal        Signal
		phrases       []string
		caseSensitive bool
	}{
		{SignalEmergencyStop, triggers.EmergencyStop, true},
		{SignalDiscuss, triggers.Discuss, false},
		{SignalImplement, triggers.Implement, false},
		{SignalBypassOn, triggers.BypassOn, false},
		{SignalBypassOff, triggers.BypassOff, false},
	}

	d := &Detector{}
	for _, spec := range specs {
		g := phraseGroup{signal: spec.signal}
		for _, phrase := range spec.phrases {
			if re := phrasePattern(phrase, spec.caseSensitive); re != nil {
				g.patterns = append(g.patterns, re)
			}
		}
		d.groups = append(d.groups, g)
	}
	return d
}

// Detect returns the signals whose phrases occur in prompt, in precedence
// order.
func (d *Detector) Detect(prompt string) []Signal {
	var found []Signal
	for _, g := range d.groups {
		for _, re := range g.patterns {
			if re.MatchString(prompt) {
				found = append(found, g.signal)
				break
			}
		}
	}
	return found
}

func phrasePattern(phrase string, caseSensitive bool) *regexp.Regexp {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil
	}
	pattern := `(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(phrase) + `(?:$|[^\p{L}\p{N}_])`
	if !caseSensitive {
		pattern = `(?i)` + pattern
	}
	return regexp.MustCompile(pattern)
}

// Apply applies detected signals for actor. Emergency stop beats discuss,
// which beats implement; bypass signals apply independently, with off
// winning over on.
func Apply(st *state.SessionState, signals []Signal, actor Actor) (Transition, error) {
	has := make(map[Signal]bool, len(signals))
	for _, s := range signals {
		has[s] = true
	}

	t := begin(st)

	wasBypass := st.Flags.BypassMode
	switch {
	case has[SignalBypassOff]:
		_ = SetBypass(st, false, actor)
	case has[SignalBypassOn]:
		if err := SetBypass(st, true, actor); err != nil {
			return t, err
		}
	}
	if st.Flags.BypassMode != wasBypass {
		t.BypassChanged = true
		t.Bypass = st.Flags.BypassMode
	}

	switch {
	case has[SignalEmergencyStop]:
		stop := EmergencyStop(st)
		t.Cleared = stop.Cleared
	case has[SignalDiscuss]:
		Discuss(st)
	case has[SignalImplement]:
		if err := Implement(st, actor); err != nil {
			return t, err
		}
	}
	t.To = st.Mode
	return t, nil
}
