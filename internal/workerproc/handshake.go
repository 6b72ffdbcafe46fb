package workerproc

import (
	"encoding/binary"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/emmabastas/libxclip/internal/xerrors"
	"github.com/emmabastas/libxclip/xclipcfg"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options is the small, schema-stable record the host sends the worker
// alongside the payload: which selection to own, which display to
// dial, the engine tunables to run with, and where (if anywhere) to serve
// Prometheus metrics. It crosses the handshake pipe as JSON (spec.md §5's
// domain-stack addition); the payload itself never is.
type Options struct {
	Display       string          `json:"display"`
	SelectionName string          `json:"selection_name"`
	Config        *xclipcfg.Config `json:"config,omitempty"`
	MetricsAddr   string          `json:"metrics_addr,omitempty"`
}

// writeFrame encodes the length-prefixed handshake frame:
// uint32 options-length | json options | uint64 payload-length | payload.
func writeFrame(w io.Writer, opts Options, payload []byte) error {
	encoded, err := json.Marshal(opts)
	if err != nil {
		return xerrors.Wrap(err, "workerproc: marshal handshake options")
	}

	var lenBuf [8]byte
	binary.BigEndian.PutUint32(lenBuf[:4], uint32(len(encoded)))
	if _, err := w.Write(lenBuf[:4]); err != nil {
		return xerrors.Wrap(err, "workerproc: write options length")
	}
	if _, err := w.Write(encoded); err != nil {
		return xerrors.Wrap(err, "workerproc: write options")
	}

	binary.BigEndian.PutUint64(lenBuf[:8], uint64(len(payload)))
	if _, err := w.Write(lenBuf[:8]); err != nil {
		return xerrors.Wrap(err, "workerproc: write payload length")
	}
	if _, err := w.Write(payload); err != nil {
		return xerrors.Wrap(err, "workerproc: write payload")
	}
	return nil
}

// readFrame decodes a frame written by writeFrame.
func readFrame(r io.Reader) (Options, []byte, error) {
	var opts Options

	var u32 [4]byte
	if _, err := io.ReadFull(r, u32[:]); err != nil {
		return opts, nil, xerrors.Wrap(err, "workerproc: read options length")
	}
	optsLen := binary.BigEndian.Uint32(u32[:])

	encoded := make([]byte, optsLen)
	if _, err := io.ReadFull(r, encoded); err != nil {
		return opts, nil, xerrors.Wrap(err, "workerproc: read options")
	}
	if err := json.Unmarshal(encoded, &opts); err != nil {
		return opts, nil, xerrors.Wrap(err, "workerproc: unmarshal handshake options")
	}

	var u64 [8]byte
	if _, err := io.ReadFull(r, u64[:]); err != nil {
		return opts, nil, xerrors.Wrap(err, "workerproc: read payload length")
	}
	payloadLen := binary.BigEndian.Uint64(u64[:])

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return opts, nil, xerrors.Wrap(err, "workerproc: read payload")
	}
	return opts, payload, nil
}
