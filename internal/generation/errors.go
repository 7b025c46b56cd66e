package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrAlreadyGenerating is returned when a run is started while the monitor
	// is still tracking a previous run.
	ErrAlreadyGenerating = errors.New("generation already in progress")

	// ErrMonitorClosed is returned when a run is started on a torn-down monitor.
	ErrMonitorClosed = errors.New("monitor is closed")

	// ErrInvalidTemplateID is returned when an empty template identifier is given.
	ErrInvalidTemplateID = errors.New("invalid template id")

	// ErrLaunchFailed wraps errors from JobClient.StartGeneration.
	ErrLaunchFailed = errors.New("failed to start generation job")

	// ErrTemplateListFailed wraps errors from TemplateLister.ListTemplates.
	ErrTemplateListFailed = errors.New("failed to list routine templates")

	// ErrTimeout is used as the error text when a run exceeds its deadline.
	ErrTimeout = errors.New("generation timed out")

	// ErrJobFailed is the generic message for failed jobs that carry no error text.
	ErrJobFailed = errors.New("generation job failed")

	errMissingJobID = errors.New("launch response carried no job id")
	errEmptyStatus  = errors.New("status response was empty")
)
