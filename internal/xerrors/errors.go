// Package xerrors defines the error taxonomy of spec.md §7. Sentinels are
// wrapped with github.com/pkg/errors at call sites that have useful
// context, the way the teacher layers cmn.NewErrAborted /
// cmn.NewAbortedErrorDetails over sentinel causes in reb/resilver.go and
// xs/tcobjs.go; callers use errors.Is/errors.Cause to recover the
// sentinel.
package xerrors

import "github.com/pkg/errors"

var (
	// ErrSetupFailure: could not create the scratch window, take
	// ownership, or verify ownership (spec.md §4.3 Setup).
	ErrSetupFailure = errors.New("xclip: selection setup failed")

	// ErrSpawnFailure: the host could not spawn the worker process. Named
	// SpawnFailure rather than the source's ForkFailure because this
	// module spawns a re-exec worker via os/exec instead of calling
	// fork() (spec.md §9 option (c); see DESIGN.md).
	ErrSpawnFailure = errors.New("xclip: failed to start worker process")

	// ErrPipeFailure: the host/worker ready-handshake pipe failed.
	ErrPipeFailure = errors.New("xclip: ready-handshake pipe failure")

	// ErrNoOwner: get found no current owner of the requested selection.
	ErrNoOwner = errors.New("xclip: no owner for selection")

	// ErrTargetRefused: the owner replied with property = None.
	ErrTargetRefused = errors.New("xclip: owner refused target")

	// ErrTimeout: the requester's deadline elapsed before completion.
	ErrTimeout = errors.New("xclip: timed out waiting for selection owner")

	// ErrBadSelection: the selection atom named isn't one of the X
	// selections this engine recognizes.
	ErrBadSelection = errors.New("xclip: not a valid selection atom")

	// ErrFatal: the worker hit an unrecoverable allocation or X I/O
	// failure and is exiting non-zero.
	ErrFatal = errors.New("xclip: fatal worker error")
)

// Wrap adds call-site context to a sentinel cause, mirroring
// cmn.NewErrAborted's "sentinel + detail string" shape.
func Wrap(cause error, context string) error {
	return errors.Wrap(cause, context)
}

// Is reports whether err (or anything it wraps) is target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
