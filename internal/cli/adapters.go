package cli

// charmLogger is the subset of *charmbracelet/log.Logger used here. Its
// message argument is interface{}, unlike the string-typed interfaces the
// internal packages declare.
type charmLogger interface {
	Debug(msg interface{}, kv ...interface{})
	Info(msg interface{}, kv ...interface{})
	Warn(msg interface{}, kv ...interface{})
	Error(msg interface{}, kv ...interface{})
}

// componentLogger adapts a charmLogger to the string-message logger
// interfaces of loop, agent, and relay.
type componentLogger struct {
	logger charmLogger
}

func (l *componentLogger) Debug(msg string, kv ...interface{}) { l.logger.Debug(msg, kv...) }

func (l *componentLogger) Info(msg string, kv ...interface{}) { l.logger.Info(msg, kv...) }

func (l *componentLogger) Warn(msg string, kv ...interface{}) { l.logger.Warn(msg, kv...) }

func (l *componentLogger) Error(msg string, kv ...interface{}) { l.logger.Error(msg, kv...) }
