// Package report splits agent output into the diagnosis shown to the user and
// the optional repair script held back until the user consents.
package report

import "strings"

const (
	// ScriptStartMarker opens the repair script section of an agent report
	ScriptStartMarker = "--- BATCH SCRIPT START ---"

	// ScriptEndMarker closes the repair script section
	ScriptEndMarker = "--- BATCH SCRIPT END ---"
)

// Report is a parsed agent report
type Report struct {
	Raw       string `json:"-"`
	Diagnosis string `json:"diagnosis"`
	Script    string `json:"script,omitempty"`
}

// Parse splits raw on the first start marker. The script runs to the next end
// marker, or to the end of the text when the agent omitted it. A report with no
// start marker, or with an empty script section, is all diagnosis.
func Parse(raw string) Report {
	r := Report{Raw: raw, Diagnosis: raw}

	before, after, found := strings.Cut(raw, ScriptStartMarker)
	if !found {
		return r
	}

	script, _, _ := strings.Cut(after, ScriptEndMarker)
	script = strings.TrimSpace(script)
	if script == "" {
		return r
	}

	r.Diagnosis = before
	r.Script = script
	return r
}

// HasScript reports whether the agent proposed a repair script
func (r Report) HasScript() bool {
	return r.Script != ""
}

// WithoutScript returns a copy with the script removed
func (r Report) WithoutScript() Report {
	r.Script = ""
	r.Raw = ""
	return r
}
