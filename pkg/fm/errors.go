package fm

import "fmt"

// DirectoryUnavailableError is returned when a directory to scan does not
// exist or cannot be read. Callers decide whether that is fatal.
type DirectoryUnavailableError struct {
	Dir string
	Err error
}

func (e *DirectoryUnavailableError) Error() string {
	return fmt.Sprintf("directory %s unavailable: %v", e.Dir, e.Err)
}

func (e *DirectoryUnavailableError) Unwrap() error {
	return e.Err
}

// ActivationIOError is returned when copying a font in or moving it out
// fails. The registry is not touched when this error is returned.
type ActivationIOError struct {
	Op   string // "copy" or "move"
	Path string
	Err  error
}

func (e *ActivationIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ActivationIOError) Unwrap() error {
	return e.Err
}
