// Package model defines the messages exchanged with the coordinator.
//
// A Submission arrives through intake and is immutable once enqueued. Every
// accepted submission eventually produces exactly one outbound message: an
// Execution when it ran to completion, or an ErrorSubmission when a stage of
// the pipeline failed.
package model

// SubmissionFile is a single source file of a submission.
type SubmissionFile struct {
	Filename string `json:"filename"`
	Contents []byte `json:"contents"`
}

// Submission is a user's code plus the metadata needed to judge it.
type Submission struct {
	ID         int64            `json:"id"`
	Language   string           `json:"language"`
	Files      []SubmissionFile `json:"files"`
	EntryPoint string           `json:"entryPoint"`
	Problem    string           `json:"problem"`
}

// ExecutionCase is the recorded outcome of running one problem case.
type ExecutionCase struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	// Runtime is the measured CPU time in milliseconds.
	Runtime int64  `json:"runtime"`
	Output  []byte `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Execution is sent to the coordinator when a submission ran to completion.
type Execution struct {
	ID    int64           `json:"id"`
	Cases []ExecutionCase `json:"cases"`
}

// Stage identifies the service capability in which an error occurred.
type Stage string

// StageExecutor is the only stage this service reports.
const StageExecutor Stage = "EXECUTOR"

// ErrorKind classifies a pipeline failure.
type ErrorKind string

const (
	ErrorInternal    ErrorKind = "E_INTERNAL"
	ErrorCompilation ErrorKind = "E_COMPILATION"
)

// ErrorSubmission is sent to the coordinator when a submission could not be
// processed. Submission is attached for diagnostics and may be nil.
type ErrorSubmission struct {
	ID         int64       `json:"id"`
	Stage      Stage       `json:"stage"`
	Kind       ErrorKind   `json:"type"`
	Message    string      `json:"message"`
	Submission *Submission `json:"submission,omitempty"`
}

// NewErrorSubmission builds an executor-stage error for sub.
func NewErrorSubmission(sub Submission, kind ErrorKind, message string) ErrorSubmission {
	return ErrorSubmission{
		ID:         sub.ID,
		Stage:      StageExecutor,
		Kind:       kind,
		Message:    message,
		Submission: &sub,
	}
}
