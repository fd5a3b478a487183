package syncer

import "go.uber.org/zap"

// Level is the severity of a user-facing notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier shows short messages to the person using the device
type Notifier interface {
	Notify(level Level, message string)
}

// LogNotifier writes notifications to the log
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Notify(level Level, message string) {
	switch level {
	case LevelError:
		n.logger.Error(message)
	case LevelWarning:
		n.logger.Warn(message)
	default:
		n.logger.Info(message)
	}
}
