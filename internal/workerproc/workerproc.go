// Package workerproc is the Go-idiomatic stand-in for the source's
// fork-based worker (spec.md §9 option (c)): since the Go runtime does not
// support calling fork() safely from a multithreaded process, Put spawns a
// fresh copy of the running binary via os/exec instead, tagged with an
// environment sentinel the child checks before its own main does anything
// else. The child never returns to its own main; it reads the handshake
// frame, acquires the selection, acks readiness over a dedicated pipe, and
// runs the owner loop until termination.
//
// Re-exec rather than fork also sidesteps the classic "duplicated libc
// stdio buffer" fork hazard outright: os/exec starts a brand-new process
// image with its own address space, so there is nothing buffered in the
// parent for the child to replay.
package workerproc

import (
	"io"
	"os"
	"os/exec"

	"github.com/emmabastas/libxclip/internal/nlog"
	"github.com/emmabastas/libxclip/internal/xerrors"
)

// WorkerEnvSentinel, when set to "1" in the process environment, marks this
// process as a re-exec worker rather than the host application.
const WorkerEnvSentinel = "LIBXCLIP_WORKER"

// readyFD is the file descriptor the child finds its ready-ack pipe on:
// stdin/stdout/stderr occupy 0-2, so the first entry in exec.Cmd.ExtraFiles
// lands on 3.
const readyFD = 3

// IsWorker reports whether this process was re-exec'd as a worker. A host
// application's main must check this, via clip.Bootstrap or directly,
// before doing anything else of its own.
func IsWorker() bool {
	return os.Getenv(WorkerEnvSentinel) == "1"
}

// Handle is the host-side handle to a running worker process, returned from
// put instead of being kept anywhere package-level (spec.md §9: "no global
// worker pid").
type Handle struct {
	cmd *exec.Cmd
}

// PID returns the worker process's id.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Wait blocks until the worker exits.
func (h *Handle) Wait() error { return h.cmd.Wait() }

// Spawn re-execs the running binary as a worker, streams opts and payload
// down its stdin, and blocks for the one-byte ready acknowledgement before
// returning. A failure acknowledgement, or any handshake I/O error, yields
// ErrSetupFailure/ErrPipeFailure.
func Spawn(opts Options, payload []byte) (*Handle, error) {
	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), WorkerEnvSentinel+"=1")
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, xerrors.Wrap(err, "workerproc: create stdin pipe")
	}

	readyR, readyW, err := os.Pipe()
	if err != nil {
		return nil, xerrors.Wrap(err, "workerproc: create ready pipe")
	}
	cmd.ExtraFiles = []*os.File{readyW}

	if err := cmd.Start(); err != nil {
		_ = readyR.Close()
		_ = readyW.Close()
		return nil, xerrors.Wrap(xerrors.ErrSpawnFailure, err.Error())
	}
	// The write end now belongs to the child; closing our copy means
	// readyR sees EOF instead of hanging if the child dies before acking.
	_ = readyW.Close()

	go func() {
		if err := writeFrame(stdin, opts, payload); err != nil {
			nlog.Warningf("workerproc: writing handshake frame failed: %v", err)
		}
		_ = stdin.Close()
	}()

	ack := make([]byte, 1)
	if _, err := io.ReadFull(readyR, ack); err != nil {
		_ = readyR.Close()
		_ = cmd.Process.Kill()
		return nil, xerrors.Wrap(xerrors.ErrPipeFailure, "ready handshake: "+err.Error())
	}
	_ = readyR.Close()

	if ack[0] != 1 {
		_ = cmd.Wait()
		return nil, xerrors.Wrap(xerrors.ErrSetupFailure, "worker reported setup failure over the ready handshake")
	}
	return &Handle{cmd: cmd}, nil
}

// RunWorker is the entry point a host's own main must call, before doing
// anything else, whenever IsWorker() is true. setup receives the decoded
// handshake options and payload and must either return a loop function to
// run afterward, or an error. RunWorker acks the host over the ready pipe
// only after setup succeeds, then calls loop and exits the process with a
// status matching its outcome. It never returns.
func RunWorker(setup func(opts Options, payload []byte) (loop func() error, err error)) {
	ready := os.NewFile(readyFD, "ready")

	opts, payload, err := readFrame(os.Stdin)
	if err != nil {
		nlog.Errorf("workerproc: reading handshake frame failed: %v", err)
		ackReady(ready, false)
		os.Exit(1)
	}

	loop, err := setup(opts, payload)
	if err != nil {
		nlog.Errorf("workerproc: setup failed: %v", err)
		ackReady(ready, false)
		os.Exit(1)
	}
	ackReady(ready, true)

	if err := loop(); err != nil {
		nlog.Errorf("workerproc: loop exited with error: %v", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func ackReady(ready *os.File, ok bool) {
	b := byte(0)
	if ok {
		b = 1
	}
	_, _ = ready.Write([]byte{b})
	_ = ready.Close()
}
