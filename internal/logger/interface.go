package logger

// Logger defines the interface for logging operations.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
}

type componentLogger struct {
	name string
}

// WithComponent returns a Logger that tags every event with the given component name.
func WithComponent(name string) Logger {
	return componentLogger{name: name}
}

func (c componentLogger) Debug() *LogEvent {
	return &LogEvent{log.Debug().Str("component", c.name)}
}

func (c componentLogger) Info() *LogEvent {
	return &LogEvent{log.Info().Str("component", c.name)}
}

func (c componentLogger) Warn() *LogEvent {
	return &LogEvent{log.Warn().Str("component", c.name)}
}

func (c componentLogger) Error() *LogEvent {
	return &LogEvent{log.Error().Str("component", c.name)}
}
