package logger

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// New builds a logger for the given level. The instance is constructed once
// in main and passed explicitly to every component; there is no ambient
// global.
func New(level string) *Logger {
	return newZapLogger(level)
}
