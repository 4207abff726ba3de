package debug

import (
	"io"
	"log"
	"os"
	"sync"
)

// Debug levels
const (
	LevelOff     = 0 // Only Always lines (heartbeat)
	LevelInfo    = 1 // Important info (startup, wifi, heartbeat)
	LevelLive    = 2 // Live info (maneuvers, bridge commands)
	LevelVerbose = 3 // Verbose (config, responses, script steps)
	LevelTrace   = 4 // Trace (GPIO, serial bytes)
)

var (
	mu     sync.Mutex
	level  int
	out    io.Writer = os.Stdout
	logger           = newLogger(os.Stdout)
)

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, "[NikBot] ", log.LstdFlags|log.Lmicroseconds)
}

// Init initializes the debug system with a level (0-4).
// 0 = only Always lines (heartbeat status)
// 1 = important info (startup, wifi state, heartbeat)
// 2 = live info (maneuvers, bridge commands)
// 3 = verbose (config, responses, script steps)
// 4 = trace (GPIO, serial I/O)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	logger = newLogger(out)
}

// SetOutput redirects debug output (e.g. to tee into the web status stream).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	logger.SetOutput(w)
}

// Level returns the current debug level.
func Level() int {
	mu.Lock()
	defer mu.Unlock()
	return level
}

// current returns the logger when minLevel is enabled, nil otherwise.
func current(minLevel int) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if level < minLevel {
		return nil
	}
	return logger
}

func printf(minLevel int, format string, args ...interface{}) {
	if l := current(minLevel); l != nil {
		l.Printf(format, args...)
	}
}

// Always prints a status line whatever the debug level, even 0.
func Always(format string, args ...interface{}) {
	printf(LevelOff, "[STATUS] "+format, args...)
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	printf(LevelInfo, "[INFO] "+format, args...)
}

// Summary prints an important banner (level 1).
func Summary(title string) {
	if l := current(LevelInfo); l != nil {
		l.Printf("═══════════════════════════════════════")
		l.Printf("  %s", title)
		l.Printf("═══════════════════════════════════════")
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	printf(LevelLive, "[LIVE] "+format, args...)
}

// Drive prints a drive maneuver (level 2).
func Drive(action string, speed uint8) {
	printf(LevelLive, "[LIVE] Drive %s speed=%d", action, speed)
}

// Command prints a command sent to the companion module (level 2).
func Command(cmd string) {
	printf(LevelLive, "[LIVE] Bridge >> %s", cmd)
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	printf(LevelVerbose, "[VERBOSE] "+format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	printf(LevelVerbose, "[VERBOSE] %s: %+v", name, v)
}

// Section prints a section separator (level 3).
func Section(name string) {
	if l := current(LevelVerbose); l != nil {
		l.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		l.Printf("  %s", name)
		l.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	printf(LevelVerbose, "[VERBOSE] Step %d: %s", num, description)
}

// Value prints a named value (level 1).
func Value(name string, value interface{}) {
	printf(LevelInfo, "[INFO]   %s = %v", name, value)
}

// Response prints a line received from the companion module (level 3).
func Response(line string) {
	printf(LevelVerbose, "[VERBOSE] Bridge << %q", line)
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	printf(LevelTrace, "[TRACE] "+format, args...)
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	printf(LevelTrace, "[GPIO] %s pin=%d value=%v", operation, pin, value)
}

// Serial prints raw serial traffic (level 4).
func Serial(direction string, data []byte) {
	printf(LevelTrace, "[SERIAL] %s %q", direction, data)
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	printf(LevelInfo, "[ERROR] %v", err)
}
