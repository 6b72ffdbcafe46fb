// Package nlog wraps github.com/golang/glog with the Infof/Warningf/Errorf/
// FastV shape used throughout the teacher repo (transport/collect.go,
// reb/resilver.go), so owner and requester log the way aistore's own
// worker loops and joggers do.
package nlog

import (
	"github.com/golang/glog"
)

// Verbosity levels, named the way the teacher names its glog.V() call sites
// (reb/resilver.go gates its chatty per-file log lines at V(4)).
const (
	VDiagnostic glog.Level = 4
)

func Infof(format string, args ...interface{})    { glog.Infof(format, args...) }
func Infoln(args ...interface{})                  { glog.Infoln(args...) }
func Warningf(format string, args ...interface{}) { glog.Warningf(format, args...) }
func Errorf(format string, args ...interface{})   { glog.Errorf(format, args...) }
func Errorln(args ...interface{})                 { glog.Errorln(args...) }

// FastV reports whether logging at level v is enabled, mirroring
// glog.FastV — call sites wrap expensive message construction in
// `if nlog.FastV(VDiagnostic) { ... }` the way reb/resilver.go does.
func FastV(level glog.Level) bool {
	return bool(glog.V(level))
}
