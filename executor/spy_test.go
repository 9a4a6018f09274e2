package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/isdmx/judgebox/model"
	"github.com/isdmx/judgebox/sandbox"
)

const spyUnpackPath = "/input"

type spyResult struct {
	res sandbox.CommandResult
	err error
}

// spySandbox records every call and replays scripted results in order. With
// no scripted result left, Execute succeeds with "0" on stderr.
type spySandbox struct {
	files     []model.SubmissionFile
	unpackErr error
	inputs    [][]byte
	inputErr  error
	commands  [][]string
	timeouts  []time.Duration
	results   []spyResult
	closed    bool
}

func (s *spySandbox) Unpack(files []model.SubmissionFile) (string, error) {
	if s.unpackErr != nil {
		return "", s.unpackErr
	}
	s.files = files
	return spyUnpackPath, nil
}

func (s *spySandbox) UnpackInput(input []byte) (string, error) {
	if s.inputErr != nil {
		return "", s.inputErr
	}
	s.inputs = append(s.inputs, input)
	return fmt.Sprintf("%s/input-%02d", spyUnpackPath, len(s.inputs)-1), nil
}

func (s *spySandbox) Execute(_ context.Context, command []string, _ []byte, timeout time.Duration) (sandbox.CommandResult, error) {
	s.commands = append(s.commands, command)
	s.timeouts = append(s.timeouts, timeout)
	if len(s.results) == 0 {
		return sandbox.CommandResult{Stderr: []byte("0")}, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.res, r.err
}

func (s *spySandbox) Close() error {
	s.closed = true
	return nil
}

func (s *spySandbox) lastCommand() []string {
	if len(s.commands) == 0 {
		return nil
	}
	return s.commands[len(s.commands)-1]
}
