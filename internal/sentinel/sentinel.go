// Package sentinel detects control sentinels in agent-authored text.
//
// A sentinel is an exact literal substring the agent writes to ask the
// supervisor to run the step again, or to stop because it is blocked or has
// failed. Detection is a plain substring match: not anchored, case-sensitive,
// no escaping. When several sentinels are present the fixed priority order
// (repeat, blocked, error) decides, not their position in the text.
package sentinel

import "strings"

// Signal is the control decision derived from a step's text.
type Signal string

const (
	// None means no sentinel was found.
	None Signal = ""
	// Repeat asks the supervisor to run the step again.
	Repeat Signal = "repeat"
	// Blocked stops the run with a blocked outcome.
	Blocked Signal = "blocked"
	// Error stops the run with an error outcome.
	Error Signal = "error"
)

// Default sentinel strings.
const (
	DefaultRepeat  = "<promise>REPEAT</promise>"
	DefaultBlocked = "<promise>BLOCKED</promise>"
	DefaultError   = "<promise>ERROR</promise>"
)

// Detector holds the sentinel strings to look for. Empty fields fall back to
// the defaults.
type Detector struct {
	Repeat  string
	Blocked string
	Error   string
}

// Default is the detector used by the package-level Detect.
var Default = Detector{
	Repeat:  DefaultRepeat,
	Blocked: DefaultBlocked,
	Error:   DefaultError,
}

// Detect scans text with the default sentinel strings.
func Detect(text string) Signal {
	return Default.Detect(text)
}

// Detect returns the highest-priority signal whose sentinel occurs anywhere in
// text, or None.
func (d Detector) Detect(text string) Signal {
	for _, c := range d.ordered() {
		if strings.Contains(text, c.sentinel) {
			return c.signal
		}
	}
	return None
}

type candidate struct {
	signal   Signal
	sentinel string
}

// ordered returns the sentinels in priority order.
func (d Detector) ordered() []candidate {
	return []candidate{
		{Repeat, orDefault(d.Repeat, DefaultRepeat)},
		{Blocked, orDefault(d.Blocked, DefaultBlocked)},
		{Error, orDefault(d.Error, DefaultError)},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// String returns the signal name, or "none".
func (s Signal) String() string {
	if s == None {
		return "none"
	}
	return string(s)
}
