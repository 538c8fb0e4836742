package consent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/harun/medic/internal/observability"
	"github.com/harun/medic/pkg/report"
	"github.com/rs/zerolog/log"
)

var (
	// ErrEmptyProblem is returned by Begin when no problem was described
	ErrEmptyProblem = errors.New("problem description is empty")

	// ErrInvalidTransition is returned when an operation is not valid in the current state
	ErrInvalidTransition = errors.New("invalid consent transition")

	// ErrNotApproved is returned when the script is requested without approval
	ErrNotApproved = errors.New("repair script has not been approved")
)

// State is a step of the consent flow
type State int

const (
	Idle State = iota
	Diagnosing
	Diagnosed
	AwaitingApproval
	Approved
	Declined
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Diagnosing:
		return "diagnosing"
	case Diagnosed:
		return "diagnosed"
	case AwaitingApproval:
		return "awaiting_approval"
	case Approved:
		return "approved"
	case Declined:
		return "declined"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultScriptName is the file name offered when saving the repair script
func DefaultScriptName() string {
	if runtime.GOOS == "windows" {
		return "system_fix_script.bat"
	}
	return "system_fix_script.sh"
}

// Gate holds one diagnosis and releases its repair script only after the
// user approves it. A Gate is safe for concurrent use.
type Gate struct {
	mu         sync.Mutex
	state      State
	runID      string
	problem    string
	report     report.Report
	err        error
	approvedAt time.Time
}

// NewGate returns a gate in the Idle state
func NewGate() *Gate {
	return &Gate{}
}

// State returns the current state
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SetRunID tags audit records with the agent run that produced the report
func (g *Gate) SetRunID(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runID = id
}

// Problem returns the problem of the current diagnosis
func (g *Gate) Problem() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.problem
}

// Diagnosis returns the diagnosis text, never the script
func (g *Gate) Diagnosis() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.report.Diagnosis
}

// Err returns the error recorded by Fail
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Begin starts a new diagnosis, discarding any previous one
func (g *Gate) Begin(problem string) error {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return ErrEmptyProblem
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == Diagnosing {
		return g.invalid("begin")
	}

	g.clear()
	g.problem = problem
	g.state = Diagnosing
	return nil
}

// Complete records the agent report. A report with a script waits for approval.
func (g *Gate) Complete(r report.Report) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Diagnosing {
		return g.invalid("complete")
	}

	g.report = r
	if r.HasScript() {
		g.state = AwaitingApproval
	} else {
		g.state = Diagnosed
	}

	log.Debug().
		Str("state", g.state.String()).
		Bool("has_script", r.HasScript()).
		Msg("Diagnosis completed")

	return nil
}

// Fail abandons the running diagnosis
func (g *Gate) Fail(err error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Diagnosing {
		return g.invalid("fail")
	}

	g.clear()
	g.err = err
	return nil
}

// Approve releases the pending script
func (g *Gate) Approve() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != AwaitingApproval {
		return g.invalid("approve")
	}

	g.state = Approved
	g.approvedAt = time.Now()
	g.record("approved", "script_approved")
	return nil
}

// Decline keeps the diagnosis and drops the script for good
func (g *Gate) Decline() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != AwaitingApproval {
		return g.invalid("decline")
	}

	g.state = Declined
	g.report = g.report.WithoutScript()
	g.record("declined", "script_declined")
	return nil
}

// Regenerate withdraws approval and asks again
func (g *Gate) Regenerate() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Approved {
		return g.invalid("regenerate")
	}

	g.state = AwaitingApproval
	g.approvedAt = time.Time{}
	g.record("withdrawn", "approval_withdrawn")
	return nil
}

// Reset returns to Idle from any state
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clear()
}

// Script returns the repair script once approved
func (g *Gate) Script() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Approved {
		return "", ErrNotApproved
	}
	return g.report.Script, nil
}

// Report returns the parsed report. The script is included only when approved.
func (g *Gate) Report() report.Report {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Approved {
		return g.report.WithoutScript()
	}
	r := g.report
	r.Raw = ""
	return r
}

// Save writes the approved script to path and returns the path written.
// An empty path uses DefaultScriptName in the working directory; a directory
// path gets DefaultScriptName appended.
func (g *Gate) Save(path string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Approved {
		return "", ErrNotApproved
	}
	if g.report.Script == "" {
		return "", fmt.Errorf("no script content to save")
	}

	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultScriptName()
	} else if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultScriptName())
	}

	if err := os.WriteFile(path, []byte(g.report.Script), scriptMode(path)); err != nil {
		return "", fmt.Errorf("failed to save script: %w", err)
	}

	log.Info().Str("path", path).Msg("Repair script saved")
	g.record("saved", "script_saved", "path", path)

	return path, nil
}

func (g *Gate) clear() {
	g.state = Idle
	g.problem = ""
	g.report = report.Report{}
	g.err = nil
	g.approvedAt = time.Time{}
}

func (g *Gate) invalid(op string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, g.state)
}

// record must be called with g.mu held
func (g *Gate) record(decision, action string, kv ...string) {
	observability.RecordConsentDecision(decision)

	metadata := map[string]interface{}{
		"state": g.state.String(),
	}
	if g.report.Script != "" {
		sum := sha256.Sum256([]byte(g.report.Script))
		metadata["script_sha256"] = hex.EncodeToString(sum[:])
	}
	for i := 0; i+1 < len(kv); i += 2 {
		metadata[kv[i]] = kv[i+1]
	}

	ctx := observability.WithRunID(context.Background(), g.runID)
	observability.RecordConsentAudit(ctx, action, metadata)
}

func scriptMode(path string) os.FileMode {
	if strings.EqualFold(filepath.Ext(path), ".sh") {
		return 0o755
	}
	return 0o644
}
