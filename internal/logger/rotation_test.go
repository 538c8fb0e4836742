package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("create rotating writer", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "medic.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("create directory if not exists", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "medic.log")

		rw, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer rw.Close()

		_, err = os.Stat(filepath.Dir(logFile))
		assert.NoError(t, err)
	})
}

func TestRotatingWriterWrite(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "medic.log")

	rw, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	data := []byte("test log message\n")
	n, err := rw.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "test log message")
}

func TestRotatingWriterRotation(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "medic.log")

	// 0 MB rotates before every write to a non-empty file
	rw, err := NewRotatingWriter(logFile, 0, 7, false)
	require.NoError(t, err)

	_, err = rw.Write([]byte(strings.Repeat("a", 200)))
	require.NoError(t, err)
	_, err = rw.Write([]byte("second"))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	files, err := filepath.Glob(filepath.Join(tmpDir, "medic.log.*"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	rotated, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Len(t, rotated, 200)

	current, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "second", string(current))
}

func TestRotatingWriterCompressesOnRotation(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "medic.log")

	rw, err := NewRotatingWriter(logFile, 0, 7, true)
	require.NoError(t, err)

	_, err = rw.Write([]byte("first"))
	require.NoError(t, err)
	_, err = rw.Write([]byte("second"))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	gz, err := filepath.Glob(filepath.Join(tmpDir, "medic.log.*.gz"))
	require.NoError(t, err)
	assert.Len(t, gz, 1)
}

func TestRotatingWriterClose(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "medic.log"), 10, 7, false)
	require.NoError(t, err)

	assert.NoError(t, rw.Close())

	_, err = rw.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestCompressFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("test content"), 0644))

	rw := &RotatingWriter{compress: true}
	require.NoError(t, rw.compressFile(testFile))

	_, err := os.Stat(testFile + ".gz")
	assert.NoError(t, err)

	_, err = os.Stat(testFile)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanup(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "medic.log")

	oldFile := logFile + ".20200101-120000.000"
	require.NoError(t, os.WriteFile(oldFile, []byte("old log"), 0644))
	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	recentFile := logFile + ".20990101-120000.000"
	require.NoError(t, os.WriteFile(recentFile, []byte("recent log"), 0644))

	rw, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)
	defer rw.Close()

	_, err = os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	assert.FileExists(t, recentFile)
}
