package consent

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompt_AskScript(t *testing.T) {
	tests := []struct {
		input string
		want  Choice
	}{
		{"y\n", ChoiceApprove},
		{"YES\n", ChoiceApprove},
		{"n\n", ChoiceDecline},
		{"\n", ChoiceDecline},
		{"r\n", ChoiceNewDiagnosis},
		{"maybe\n", ChoiceDecline},
		{"", ChoiceDecline},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompt(strings.NewReader(tt.input), &out)

			choice, err := p.AskScript(context.Background(), "Windows Batch Script (.bat file)")
			require.NoError(t, err)
			assert.Equal(t, tt.want, choice)
			assert.Contains(t, out.String(), "PROPOSED FIX SCRIPT")
			assert.Contains(t, out.String(), "Windows Batch Script (.bat file)")
		})
	}
}

func TestPrompt_AskScript_InvalidInputNotice(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompt(strings.NewReader("sure\n"), &out)

	choice, err := p.AskScript(context.Background(), "shell script")
	require.NoError(t, err)
	assert.Equal(t, ChoiceDecline, choice)
	assert.Contains(t, out.String(), "Invalid input: sure (defaulting to NO)")
}

func TestPrompt_AskScript_Cancelled(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	choice, err := NewPrompt(reader, &bytes.Buffer{}).AskScript(ctx, "shell script")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, ChoiceDecline, choice)
}

func TestPrompt_AskSavePath(t *testing.T) {
	tests := []struct {
		input    string
		wantPath string
		wantSave bool
	}{
		{"\n", "", false},
		{".\n", "system_fix_script.sh", true},
		{"/tmp/fix.sh\n", "/tmp/fix.sh", true},
	}

	for _, tt := range tests {
		p := NewPrompt(strings.NewReader(tt.input), &bytes.Buffer{})
		path, save, err := p.AskSavePath(context.Background(), "system_fix_script.sh")
		require.NoError(t, err)
		assert.Equal(t, tt.wantPath, path)
		assert.Equal(t, tt.wantSave, save)
	}
}

func TestPrompt_SharedScanner(t *testing.T) {
	p := NewPrompt(strings.NewReader("my wifi keeps dropping\ny\nfix.sh\n"), &bytes.Buffer{})

	problem, err := p.AskLine(context.Background(), "Problem: ")
	require.NoError(t, err)
	assert.Equal(t, "my wifi keeps dropping", problem)

	choice, err := p.AskScript(context.Background(), "shell script")
	require.NoError(t, err)
	assert.Equal(t, ChoiceApprove, choice)

	path, save, err := p.AskSavePath(context.Background(), "system_fix_script.sh")
	require.NoError(t, err)
	assert.True(t, save)
	assert.Equal(t, "fix.sh", path)
}

func TestPrompt_AnswerAfterCancelledAsk(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()
	p := NewPrompt(reader, &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.AskLine(ctx, "Problem: ")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		_, _ = writer.Write([]byte("y\n"))
	}()

	done := make(chan Choice, 1)
	go func() {
		choice, _ := p.AskScript(context.Background(), "shell script")
		done <- choice
	}()

	select {
	case choice := <-done:
		assert.Equal(t, ChoiceApprove, choice)
	case <-time.After(2 * time.Second):
		t.Fatal("answer typed after a cancelled ask was never delivered")
	}
}
