package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"
	"time"
)

// Level is the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

const redactedPlaceholder = "[REDACTED]"

var (
	fileLoggerInstance *fileLogger
	fileLoggerOnce     sync.Once
)

// fileLogger writes formatted, sanitized lines to noterang-debug.log and
// echoes WARN and above to stderr.
type fileLogger struct {
	file      *os.File
	logger    *log.Logger
	level     Level
	mu        sync.Mutex
	component string
}

func sharedFileLogger() *fileLogger {
	fileLoggerOnce.Do(func() {
		fileLoggerInstance = newFileLogger(DEBUG)
	})
	return fileLoggerInstance
}

func newFileLogger(level Level) *fileLogger {
	l := &fileLogger{level: level}
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("resolve home directory: %v", err)
		return l
	}
	dir := filepath.Join(home, ".noterang")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("create log directory: %v", err)
		return l
	}
	file, err := os.OpenFile(filepath.Join(dir, "noterang-debug.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("open log file: %v", err)
		return l
	}
	l.file = file
	l.logger = log.New(file, "", 0)
	return l
}

// NewComponentLogger returns the shared file logger scoped to a component.
func NewComponentLogger(component string) Logger {
	shared := sharedFileLogger()
	return &fileLogger{
		file:      shared.file,
		logger:    shared.logger,
		level:     shared.level,
		component: component,
	}
}

// SetGlobalLevel sets the minimum severity written by all component loggers.
func SetGlobalLevel(level Level) {
	l := sharedFileLogger()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *fileLogger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	component := l.component
	if component == "" {
		component = "NOTERANG"
	}

	// Format: 2025-09-30 12:34:56 [INFO] [Workflow] workflow.go:123 - message
	logLine := fmt.Sprintf("%s [%s] [%s] %s:%d - %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		levelToString(level), component, file, line,
		fmt.Sprintf(format, args...))

	sanitized := Sanitize(logLine)
	if l.logger != nil {
		l.logger.Print(sanitized)
	}
	if level >= WARN {
		fmt.Fprint(os.Stderr, sanitized)
	}
}

func (l *fileLogger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }
func (l *fileLogger) Info(format string, args ...any)  { l.log(INFO, format, args...) }
func (l *fileLogger) Warn(format string, args ...any)  { l.log(WARN, format, args...) }
func (l *fileLogger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

func levelToString(level Level) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var (
	authorizationBearerPattern = regexp.MustCompile(
		`(?i)((?:"|')?authorization(?:"|')?\s*(?:=|:)\s*)(bearer\s+)([^"'\s,;]+)`,
	)
	sensitiveKeyValuePattern = regexp.MustCompile(
		`(?i)((?:"|')?(?:api[_-]?key|access[_-]?token|csrf[_-]?token|totp[_-]?secret|token|secret|password|session[_-]?id|cookie|credential)(?:"|')?\s*(?:=|:)\s*)(?:"|')?([^"'\s,;]+)((?:"|')?)`,
	)
	bearerTokenPattern = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-\._~+/]+=*)`)
	cookiePairPattern  = regexp.MustCompile(
		`(SID|HSID|SSID|APISID|SAPISID|__Secure-1PSID|__Secure-3PSID|__Secure-1PAPISID|__Secure-3PAPISID)=([^;\s"']+)`,
	)
	standaloneSecretPattern = regexp.MustCompile(
		`(?i)(ya29\.[A-Za-z0-9\-_]+|AIza[A-Za-z0-9\-_]{30,})`,
	)
)

// Sanitize redacts credential material from a log line before it hits disk.
func Sanitize(line string) string {
	sanitized := authorizationBearerPattern.ReplaceAllStringFunc(line, func(match string) string {
		parts := authorizationBearerPattern.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		return parts[1] + parts[2] + redactedPlaceholder
	})

	sanitized = sensitiveKeyValuePattern.ReplaceAllStringFunc(sanitized, func(match string) string {
		parts := sensitiveKeyValuePattern.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		return parts[1] + redactedPlaceholder + parts[3]
	})

	sanitized = bearerTokenPattern.ReplaceAllStringFunc(sanitized, func(match string) string {
		parts := bearerTokenPattern.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		return parts[1] + redactedPlaceholder
	})

	sanitized = cookiePairPattern.ReplaceAllString(sanitized, "$1="+redactedPlaceholder)
	sanitized = standaloneSecretPattern.ReplaceAllString(sanitized, redactedPlaceholder)
	return sanitized
}
