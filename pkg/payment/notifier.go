package payment

// Level is the severity of a user notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier shows short messages to the payer while an attempt runs
type Notifier interface {
	Notify(level Level, title, description string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(level Level, title, description string)

// Notify implements Notifier
func (f NotifierFunc) Notify(level Level, title, description string) {
	f(level, title, description)
}

// NoopNotifier drops every message
type NoopNotifier struct{}

// Notify implements Notifier
func (NoopNotifier) Notify(Level, string, string) {}
