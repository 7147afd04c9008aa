package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jrick/logrotate/rotator"
	"github.com/pkg/errors"
)

// Flags that add the logging callsite to every entry. LogFlagShortFile wins
// over LogFlagLongFile.
const (
	LogFlagLongFile uint32 = 1 << iota
	LogFlagShortFile
)

// logFlagsEnvironmentVariable holds a comma separated list of "longfile" and
// "shortfile"
const logFlagsEnvironmentVariable = "LOGFLAGS"

var logFlagNames = map[string]uint32{
	"longfile":  LogFlagLongFile,
	"shortfile": LogFlagShortFile,
}

func flagsFromEnvironment() uint32 {
	var flags uint32
	for _, name := range strings.Split(os.Getenv(logFlagsEnvironmentVariable), ",") {
		flags |= logFlagNames[strings.TrimSpace(name)]
	}
	return flags
}

const (
	normalLogSize   = 512
	entryBufferSize = 1000

	// Rotated log files roll over at 10MB and the last 3 are kept
	rotationThresholdKB = 10 * 1000
	rotationMaxRolls    = 3
)

// levelWriter receives the entries at or above minLevel
type levelWriter struct {
	io.WriteCloser
	minLevel Level
}

// Backend serializes the entries of all its subsystem loggers into its
// writers from a single goroutine
type Backend struct {
	flag    uint32
	running atomic.Bool
	writers []levelWriter
	entries chan logEntry
	drained sync.WaitGroup
}

// NewBackendWithFlags returns a backend using the given callsite flags
func NewBackendWithFlags(flags uint32) *Backend {
	return &Backend{flag: flags, entries: make(chan logEntry, entryBufferSize)}
}

// NewBackend returns a backend whose flags are read from the LOGFLAGS
// environment variable
func NewBackend() *Backend {
	return NewBackendWithFlags(flagsFromEnvironment())
}

func (b *Backend) addWriter(writer io.WriteCloser, minLevel Level) error {
	if b.IsRunning() {
		return errors.New("cannot add a log writer to a running backend")
	}
	b.writers = append(b.writers, levelWriter{WriteCloser: writer, minLevel: minLevel})
	return nil
}

// AddLogWriter adds a writer receiving every entry at or above minLevel
func (b *Backend) AddLogWriter(writer io.WriteCloser, minLevel Level) error {
	return b.addWriter(writer, minLevel)
}

// AddLogFile adds a rotated log file receiving every entry at or above
// minLevel. The file and its directory are created if missing.
func (b *Backend) AddLogFile(logFile string, minLevel Level) error {
	if b.IsRunning() {
		return errors.New("cannot add a log file to a running backend")
	}
	logDir := filepath.Dir(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		return errors.Wrapf(err, "failed to create log directory %s", logDir)
	}
	logRotator, err := rotator.New(logFile, rotationThresholdKB, false, rotationMaxRolls)
	if err != nil {
		return errors.Wrapf(err, "failed to create log rotator for %s", logFile)
	}
	return b.addWriter(logRotator, minLevel)
}

// Run starts writing entries. It may be called only once.
func (b *Backend) Run() error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.New("the logger backend is already running")
	}
	b.drained.Add(1)
	go func() {
		defer b.drained.Done()
		defer func() {
			if err := recover(); err != nil {
				fmt.Fprintf(os.Stderr, "Fatal error in the logger backend: %+v\n%s\n", err, debug.Stack())
			}
		}()
		for entry := range b.entries {
			b.write(entry)
		}
	}()
	return nil
}

func (b *Backend) write(entry logEntry) {
	for _, writer := range b.writers {
		if entry.level >= writer.minLevel {
			_, _ = writer.Write(entry.log)
		}
	}
}

// IsRunning returns whether Run was called and Close was not
func (b *Backend) IsRunning() bool {
	return b.running.Load()
}

// Close writes the pending entries and closes all writers
func (b *Backend) Close() {
	if !b.running.CompareAndSwap(true, false) {
		return
	}
	close(b.entries)
	b.drained.Wait()
	for _, writer := range b.writers {
		_ = writer.Close()
	}
}

// Logger returns the logger of subsystemTag writing into b. It stays silent
// until its level is set.
func (b *Backend) Logger(subsystemTag string) *Logger {
	return &Logger{lvl: LevelOff, tag: subsystemTag, b: b, writeChan: b.entries}
}
