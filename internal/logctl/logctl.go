// Package logctl parses a RUST_LOG-style filter ("<crate>=<level>,...") into
// per-package verbosity thresholds consulted around the hot-path log lines,
// the same places the teacher guards with glog.V(2).Infoln. glog remains the
// sink; this package only decides whether a given package/level pair should
// fire.
package logctl

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// Level is a RUST_LOG-style severity, ordered least to most verbose.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func parseLevel(s string) (Level, bool) {
	switch strings.ToLower(s) {
	case "error":
		return LevelError, true
	case "warn", "warning":
		return LevelWarn, true
	case "info":
		return LevelInfo, true
	case "debug":
		return LevelDebug, true
	case "trace":
		return LevelTrace, true
	default:
		return 0, false
	}
}

// glogVerbosity maps a Level onto the glog.V() call the teacher already uses
// for its own Debug/Trace-grade lines: Info and above are unconditional,
// Debug is V(1), Trace is V(2).
func (l Level) glogVerbosity() int {
	switch l {
	case LevelDebug:
		return 1
	case LevelTrace:
		return 2
	default:
		return 0
	}
}

// Filter holds a default level plus per-package overrides, built once at
// startup from an env var.
type Filter struct {
	mu        sync.RWMutex
	def       Level
	overrides map[string]Level
}

// defaultFilter is consulted by the package-level Enabled helper.
var defaultFilter = &Filter{def: LevelInfo}

// Init parses the named environment variable ("RUST_LOG" per spec §6, with
// "SPOREFINDER_LOG" as a secondary convenience name) and installs it as the
// process-wide default filter. An unset or empty value leaves level = Info,
// matching spec §6 ("if unset, level = Info").
func Init(envNames ...string) {
	for _, name := range envNames {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			defaultFilter = Parse(v)
			return
		}
	}
}

// Parse builds a Filter from a "<crate>=<level>,..." string. A bare level
// with no "=" sets the default for every package. Malformed entries are
// skipped rather than treated as fatal — log filtering is diagnostic, not a
// config error per spec §7's taxonomy.
func Parse(spec string) *Filter {
	f := &Filter{def: LevelInfo, overrides: make(map[string]Level)}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pkg, levelStr, ok := strings.Cut(part, "=")
		if !ok {
			if lvl, ok := parseLevel(part); ok {
				f.def = lvl
			}
			continue
		}
		if pkg == "" {
			continue
		}
		lvl, ok := parseLevel(levelStr)
		if !ok {
			continue
		}
		f.overrides[pkg] = lvl
	}
	return f
}

// levelFor returns the effective level for pkg, falling back to the default.
func (f *Filter) levelFor(pkg string) Level {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if lvl, ok := f.overrides[pkg]; ok {
		return lvl
	}
	return f.def
}

// Enabled reports whether a log line at level for pkg should fire. Callers
// wanting a glog.V() threshold instead use GlogVerbosity. Info-and-above
// lines are expected to call glog.Infof/Warningf/Errorf directly and only
// use Enabled to skip Debug/Trace-grade ones.
func Enabled(pkg string, level Level) bool {
	return defaultFilter.levelFor(pkg) >= level
}

// GlogVerbosity returns the glog.V() threshold that corresponds to the
// filter's effective level for pkg, for call sites that want a single
// glog.V(n) guard instead of a boolean Enabled() check.
func GlogVerbosity(pkg string) int {
	return defaultFilter.levelFor(pkg).glogVerbosity()
}

// String renders a parsed level as its lowercase RUST_LOG name, suitable
// for logging configuration summaries.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
}
