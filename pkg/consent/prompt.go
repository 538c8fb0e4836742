package consent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Choice is the user's answer to the script request
type Choice int

const (
	ChoiceDecline Choice = iota
	ChoiceApprove
	ChoiceNewDiagnosis
)

func (c Choice) String() string {
	switch c {
	case ChoiceApprove:
		return "approve"
	case ChoiceNewDiagnosis:
		return "new_diagnosis"
	default:
		return "decline"
	}
}

// Prompt asks the user for consent on a terminal. It is not safe for
// concurrent use; a read abandoned by cancellation is handed to the next ask.
type Prompt struct {
	scanner *bufio.Scanner
	writer  io.Writer

	mu      sync.Mutex
	pending chan line // in-flight Scan, nil when idle
}

type line struct {
	text string
	err  error
}

// NewPrompt creates a prompt reading answers from reader
func NewPrompt(reader io.Reader, writer io.Writer) *Prompt {
	return &Prompt{
		scanner: bufio.NewScanner(reader),
		writer:  writer,
	}
}

// AskScript shows the script warning and reads y, n or r.
// Empty, unreadable or unknown input declines.
func (p *Prompt) AskScript(ctx context.Context, scriptKind string) (Choice, error) {
	p.displayScriptRequest(scriptKind)

	input, err := p.readLine(ctx)
	if err != nil {
		p.displayDeclined()
		return ChoiceDecline, err
	}

	switch strings.ToLower(input) {
	case "y", "yes":
		p.displayApproved()
		log.Info().Msg("Repair script approved via CLI")
		return ChoiceApprove, nil

	case "r", "new":
		log.Info().Msg("New diagnosis requested via CLI")
		return ChoiceNewDiagnosis, nil

	case "n", "no", "":
		p.displayDeclined()
		log.Info().Msg("Repair script declined via CLI")
		return ChoiceDecline, nil

	default:
		p.displayInvalidInput(input)
		log.Warn().Str("input", input).Msg("Invalid input for script consent")
		return ChoiceDecline, nil
	}
}

// AskSavePath asks where to save the script. An empty answer means skip.
func (p *Prompt) AskSavePath(ctx context.Context, defaultName string) (path string, save bool, err error) {
	fmt.Fprintf(p.writer, "  Save script to file? Enter a path, '.' for ./%s, or press Enter to skip: ", defaultName)

	input, err := p.readLine(ctx)
	if err != nil || input == "" {
		return "", false, err
	}
	if input == "." {
		return defaultName, true, nil
	}
	return input, true, nil
}

// AskLine prints label and reads one line
func (p *Prompt) AskLine(ctx context.Context, label string) (string, error) {
	fmt.Fprint(p.writer, label)
	return p.readLine(ctx)
}

// readLine returns an empty string on EOF. Only one Scan runs at a time: when
// ctx ends first, the Scan keeps running and its line goes to the next call.
func (p *Prompt) readLine(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.pending == nil {
		ch := make(chan line, 1)
		p.pending = ch
		go func() { ch <- p.scan() }()
	}
	ch := p.pending
	p.mu.Unlock()

	select {
	case l := <-ch:
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()
		return l.text, l.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Prompt) scan() line {
	if p.scanner.Scan() {
		return line{text: strings.TrimSpace(p.scanner.Text())}
	}
	if err := p.scanner.Err(); err != nil {
		return line{err: fmt.Errorf("failed to read input: %w", err)}
	}
	return line{}
}

func (p *Prompt) displayScriptRequest(scriptKind string) {
	fmt.Fprintln(p.writer, "")
	fmt.Fprintln(p.writer, "╔════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(p.writer, "║              🔧 PROPOSED FIX SCRIPT                            ║")
	fmt.Fprintln(p.writer, "╚════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(p.writer, "")
	fmt.Fprintf(p.writer, "  The diagnostic agent can create a %s to fix this issue.\n", scriptKind)
	fmt.Fprintln(p.writer, "")
	fmt.Fprintln(p.writer, "  Before you proceed:")
	fmt.Fprintln(p.writer, "  • The script will make changes to your system")
	fmt.Fprintln(p.writer, "  • Always backup important data before running system repair scripts")
	fmt.Fprintln(p.writer, "  • Review the script content carefully before execution")
	fmt.Fprintln(p.writer, "  • Run the script with administrator privileges")
	fmt.Fprintln(p.writer, "")
	fmt.Fprint(p.writer, "  Create fix script? [y]es / [N]o, just show diagnosis / [r]un new diagnosis: ")
}

func (p *Prompt) displayApproved() {
	fmt.Fprintln(p.writer, "")
	fmt.Fprintln(p.writer, "  ✅ Script has been generated based on your approval!")
	fmt.Fprintln(p.writer, "")
}

func (p *Prompt) displayDeclined() {
	fmt.Fprintln(p.writer, "")
	fmt.Fprintln(p.writer, "  ❌ Script declined, showing diagnosis only")
	fmt.Fprintln(p.writer, "")
}

func (p *Prompt) displayInvalidInput(input string) {
	fmt.Fprintln(p.writer, "")
	fmt.Fprintf(p.writer, "  ⚠️  Invalid input: %s (defaulting to NO)\n", input)
	fmt.Fprintln(p.writer, "")
}
