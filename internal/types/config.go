package types

type RunMode string

const (
	// ModeLocal runs the scheduler worker and metrics endpoint in one process
	ModeLocal RunMode = "local"
	// ModeWorker runs only the billing cycle worker
	ModeWorker RunMode = "worker"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
