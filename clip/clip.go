// Package clip is the host-facing API: spec.md §6's put/get/targets,
// concretized as Go functions over xwire.Conn plus a re-exec worker process
// for put (internal/workerproc). This is the only package a consuming
// application is expected to import directly.
package clip

import (
	"net/http"
	"os"
	"strconv"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emmabastas/libxclip/internal/nlog"
	"github.com/emmabastas/libxclip/internal/workerproc"
	"github.com/emmabastas/libxclip/owner"
	"github.com/emmabastas/libxclip/owner/metrics"
	"github.com/emmabastas/libxclip/requester"
	"github.com/emmabastas/libxclip/xwire"
)

// WorkerHandle is the caller-held identity of a running put worker — never
// package-level state (spec.md §9: "no global worker pid").
type WorkerHandle struct {
	h *workerproc.Handle
}

// PID returns the worker process's id.
func (w WorkerHandle) PID() int { return w.h.PID() }

// Wait blocks until the worker exits: normally only after the selection is
// cleared or the process is signalled, per spec.md §4.3's termination rule.
func (w WorkerHandle) Wait() error { return w.h.Wait() }

// Put re-execs the running binary as a worker that takes ownership of a
// selection and serves data (its own copy of data, handed over the
// handshake pipe) until it loses that ownership. The host process's own
// main must call Bootstrap before doing anything else, or the re-exec'd
// worker will run the host's normal startup path instead of becoming a
// worker.
func Put(data []byte, opts ...PutOption) (WorkerHandle, error) {
	c := newPutConfig(opts)
	wopts := workerproc.Options{
		Display:       c.display,
		SelectionName: c.selectionName,
		Config:        c.cfg,
		MetricsAddr:   c.metricsAddr,
	}
	h, err := workerproc.Spawn(wopts, data)
	if err != nil {
		return WorkerHandle{}, err
	}
	return WorkerHandle{h: h}, nil
}

// Get resolves the current owner of the configured selection (CLIPBOARD by
// default), converts it to the configured target (UTF8_STRING by default),
// and returns the resulting bytes.
func Get(conn xwire.Conn, opts ...GetOption) ([]byte, error) {
	c := newGetConfig(opts)
	sel, err := internSelection(conn, c.selectionName)
	if err != nil {
		return nil, err
	}
	target, err := internSelection(conn, c.targetName)
	if err != nil {
		return nil, err
	}
	return requester.Get(conn, requester.Options{
		Selection: sel,
		Target:    target,
		Timeout:   c.timeout,
		Config:    c.cfg,
	})
}

// Targets is Get with the target fixed to TARGETS, returning the atoms the
// current owner advertises.
func Targets(conn xwire.Conn, opts ...GetOption) ([]xproto.Atom, error) {
	c := newGetConfig(opts)
	sel, err := internSelection(conn, c.selectionName)
	if err != nil {
		return nil, err
	}
	return requester.Targets(conn, requester.Options{
		Selection: sel,
		Timeout:   c.timeout,
		Config:    c.cfg,
	})
}

// Bootstrap must be the first thing a host application's main calls. If
// this process was re-exec'd as a worker (workerproc.IsWorker), Bootstrap
// reads the handshake frame, acquires the selection, acks the host, runs
// the owner loop, and calls os.Exit — it never returns. Otherwise it
// returns immediately and the host's own main proceeds normally.
func Bootstrap() {
	if !workerproc.IsWorker() {
		return
	}
	workerproc.RunWorker(runOwnerWorker)
}

// runOwnerWorker is the workerproc.RunWorker setup callback: dial the
// display named in opts, acquire the selection, and hand back a loop
// function that runs the owner event loop to completion.
func runOwnerWorker(opts workerproc.Options, payload []byte) (func() error, error) {
	conn, err := xwire.Dial(opts.Display)
	if err != nil {
		return nil, err
	}

	sel, err := conn.InternAtom(opts.SelectionName, false)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg, strconv.Itoa(os.Getpid()))
		serveMetrics(opts.MetricsAddr, reg)
	}

	l := owner.New(conn, sel, payload, m, opts.Config)
	if err := l.Setup(); err != nil {
		return nil, err
	}
	return l.Run, nil
}

// serveMetrics starts a best-effort HTTP server exposing reg's instruments
// at addr/metrics for the worker's lifetime. A listen failure is logged, not
// fatal: metrics are diagnostic, never load-bearing for the transfer itself.
func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nlog.Warningf("clip: metrics server on %s failed: %v", addr, err)
		}
	}()
}
