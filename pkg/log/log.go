// Package log provides a registry of named, independently enable/disable-able
// zerolog loggers shared across the depfile packages.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.CallerSkipFrameCount = 3
}

var pkgs = []string{}
var enabledLoggers = map[string]*zerolog.Logger{}

// Out is the log output writer
var Out io.Writer = os.Stderr

// Mode dev prints in console format and prod in json output
var Mode = "dev"

// Logger is the main logging element
type Logger struct {
	pkg string
	pid int
}

// ListRegisteredPackages returns the name of the packages a log has been registered.
func ListRegisteredPackages() []string {
	return pkgs
}

// ListEnabledPackages returns a list with the name of log-enabled packages.
func ListEnabledPackages() []string {
	pkgs := []string{}
	for k := range enabledLoggers {
		pkgs = append(pkgs, k)
	}
	return pkgs
}

// EnableAll enables all registered loggers
func EnableAll() error {
	for _, v := range pkgs {
		if err := Enable(v); err != nil {
			return err
		}
	}
	return nil
}

// Enable enables a specific logger with its package name
func Enable(pkg string) error {
	l := create(pkg)
	enabledLoggers[pkg] = l
	return nil
}

// Disable a specific logger by its package name
func Disable(prefix string) {
	nop := zerolog.Nop()
	enabledLoggers[prefix] = &nop
}

func create(pkg string) *zerolog.Logger {
	pid := os.Getpid()
	zl := createLog(pkg, pid)
	l := zl.With().Str("pkg", pkg).Int("pid", pid).Logger()
	return &l
}

// New returns a new Logger, disabled until Enable(pkg) is called.
func New(pkg string) *Logger {
	pkgs = append(pkgs, pkg)
	nop := zerolog.Nop()
	enabledLoggers[pkg] = &nop
	return &Logger{pkg: pkg, pid: os.Getpid()}
}

func find(pkg string) *zerolog.Logger {
	return enabledLoggers[pkg]
}

// Zerolog returns the underlying zerolog.Logger for direct structured
// logging (l.Zerolog().Info().Str(...).Msg(...)), which is how the rest of
// this service logs rather than through printf-style helpers.
func (l *Logger) Zerolog() *zerolog.Logger {
	return find(l.pkg)
}

func createLog(pkg string, pid int) *zerolog.Logger {
	zlog := zerolog.New(os.Stderr).With().Str("pkg", pkg).Int("pid", pid).Timestamp().Caller().Logger()
	if Mode == "" || Mode == "dev" {
		zlog = zlog.Output(zerolog.ConsoleWriter{Out: Out})
	} else {
		zlog = zlog.Output(Out)
	}
	return &zlog
}
