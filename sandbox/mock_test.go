package sandbox

import (
	"context"
	"strings"
	"sync"
	"time"
)

type mockResult struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
}

// MockCommandRunner implements CommandRunner for testing. Results are matched
// by the longest registered prefix of the space-joined command line.
type MockCommandRunner struct {
	mu             sync.Mutex
	commandResults map[string]mockResult
	defaultResult  mockResult
	calls          [][]string
	stdins         [][]byte
}

func (m *MockCommandRunner) RunCommand(_ context.Context, args []string, stdin []byte, _ time.Duration) (CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, args)
	m.stdins = append(m.stdins, stdin)

	cmdLine := strings.Join(args, " ")
	result, best := m.defaultResult, -1
	for prefix, r := range m.commandResults {
		if strings.HasPrefix(cmdLine, prefix) && len(prefix) > best {
			result, best = r, len(prefix)
		}
	}
	return CommandResult{
		ExitCode: result.exitCode,
		Stdout:   []byte(result.stdout),
		Stderr:   []byte(result.stderr),
	}, result.err
}

// commandLines returns every recorded invocation as a space-joined string.
func (m *MockCommandRunner) commandLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		lines = append(lines, strings.Join(c, " "))
	}
	return lines
}

// countPrefix reports how many recorded invocations start with prefix.
func (m *MockCommandRunner) countPrefix(prefix string) int {
	n := 0
	for _, line := range m.commandLines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}
