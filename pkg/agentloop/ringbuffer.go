package agentloop

import "sync"

// LogRingBuffer is a bounded, append-only buffer of a command's recent
// stdout/stderr lines, kept locally on the agent for diagnostics even after
// the lines have already been shipped to the server.
//
// Grounded on the same drop-oldest-when-over-capacity shape used for the
// pack's audit event log, generalized from an unbounded slice trimmed from
// the front to a fixed-size buffer per command.
type LogRingBuffer struct {
	mu     sync.Mutex
	lines  []string
	maxLen int
}

// NewLogRingBuffer constructs a buffer holding at most maxLen lines.
func NewLogRingBuffer(maxLen int) *LogRingBuffer {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &LogRingBuffer{lines: make([]string, 0, maxLen), maxLen: maxLen}
}

// Append adds a line, dropping the oldest line if the buffer is full.
func (b *LogRingBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.maxLen {
		b.lines = b.lines[len(b.lines)-b.maxLen:]
	}
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *LogRingBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}
