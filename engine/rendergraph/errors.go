package rendergraph

import "fmt"

// ConfigError reports a malformed or missing mandatory field in a pipeline
// JSON document. Fatal at setup.
type ConfigError struct {
	Job   string
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Job != "" {
		return fmt.Sprintf("rendergraph: config error in job %q field %q: %s", e.Job, e.Field, e.Msg)
	}
	return fmt.Sprintf("rendergraph: config error field %q: %s", e.Field, e.Msg)
}

// DuplicateResource reports two jobs, attachments, or shader resources
// claiming the same name. Fatal at setup.
type DuplicateResource struct {
	Kind string // "job", "attachment", or "shader resource"
	Name string
}

func (e *DuplicateResource) Error() string {
	return fmt.Sprintf("rendergraph: duplicate %s name %q", e.Kind, e.Name)
}

// UnresolvedAttachment reports an input attachment naming a non-existent
// parent job or output. Fatal at setup.
type UnresolvedAttachment struct {
	Job        string
	Attachment string
	ParentJob  string
}

func (e *UnresolvedAttachment) Error() string {
	return fmt.Sprintf("rendergraph: job %q attachment %q: parent job %q not found or has no matching output", e.Job, e.Attachment, e.ParentJob)
}

// PipelineBuildError reports a shader compilation or pipeline creation
// rejected by the GPU backend. Fatal at setup.
type PipelineBuildError struct {
	Job string
	Err error
}

func (e *PipelineBuildError) Error() string {
	return fmt.Sprintf("rendergraph: job %q pipeline build failed: %v", e.Job, e.Err)
}

func (e *PipelineBuildError) Unwrap() error {
	return e.Err
}

// ReadbackError reports a failed or cancelled async buffer mapping during
// selection read-back. Non-fatal; the current selection is retained and
// the pending flag is cleared on the next frame.
type ReadbackError struct {
	Err error
}

func (e *ReadbackError) Error() string {
	return fmt.Sprintf("rendergraph: selection read-back failed: %v", e.Err)
}

func (e *ReadbackError) Unwrap() error {
	return e.Err
}

// GPUSubmitError reports a command submission rejected by the backend.
// Non-fatal for the frame in which it occurs; the frame counter still
// advances.
type GPUSubmitError struct {
	Job string
	Err error
}

func (e *GPUSubmitError) Error() string {
	return fmt.Sprintf("rendergraph: job %q command submission failed: %v", e.Job, e.Err)
}

func (e *GPUSubmitError) Unwrap() error {
	return e.Err
}
