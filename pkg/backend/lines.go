package backend

import (
	"bytes"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// lineLogger is an io.Writer that logs every complete line of command output
type lineLogger struct {
	mu     sync.Mutex
	logger zerolog.Logger
	buf    bytes.Buffer
	last   string
}

func newLineLogger(logger zerolog.Logger) *lineLogger {
	return &lineLogger{logger: logger}
}

func (w *lineLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		w.emit(string(w.buf.Next(i + 1)))
	}
	return len(p), nil
}

// Flush logs a trailing partial line
func (w *lineLogger) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

// Last returns the last non-empty line written
func (w *lineLogger) Last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *lineLogger) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	w.last = line
	w.logger.Info().Msg(line)
}
