package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a JSON logger for the service. Level comes from LOG_LEVEL and
// defaults to info.
func New(serviceName string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	log.SetOutput(os.Stdout)

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	log.AddHook(&serviceHook{name: serviceName})
	return log
}

// serviceHook stamps every entry with the service name.
type serviceHook struct {
	name string
}

func (h *serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *serviceHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = h.name
	return nil
}
