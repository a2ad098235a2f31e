package compute

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBackend is returned when no back end is registered under the requested name.
	ErrNoBackend = errors.New("compute: no such backend")

	// ErrBackendUnavailable is returned when the back end is registered but cannot run
	// on this system (no device, driver or runtime missing).
	ErrBackendUnavailable = errors.New("compute: backend unavailable")

	// ErrNoDevice is returned for an out-of-range device index.
	ErrNoDevice = errors.New("compute: no such device")

	ErrInvalidSize     = errors.New("compute: invalid size")
	ErrOutOfResources  = errors.New("compute: out of resources")
	ErrBuildFailed     = errors.New("compute: program build failed")
	ErrUnknownKernel   = errors.New("compute: unknown kernel")
	ErrInvalidArg      = errors.New("compute: invalid kernel argument")
	ErrInvalidWorkSize = errors.New("compute: invalid work size")
	ErrLaunchFailed    = errors.New("compute: launch failed")
	ErrReleased        = errors.New("compute: object already released")
	ErrForeignObject   = errors.New("compute: object belongs to another context")

	// ErrDependency fails a command whose predecessor on the queue failed.
	ErrDependency = errors.New("compute: preceding command failed")

	// ErrLeaked is returned by Context.Release when objects are still live.
	ErrLeaked = errors.New("compute: objects still live at release")
)

// BuildError carries the build log of a program that failed to compile.
type BuildError struct {
	Program string
	Log     string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("compute: build of program %q failed:\n%s", e.Program, e.Log)
}

func (e *BuildError) Unwrap() error { return ErrBuildFailed }
