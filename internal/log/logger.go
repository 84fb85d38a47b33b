package log

import (
	"fmt"
	"io"
	"os"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"

	"github.com/openshift-assisted/fleet-telemetry/internal/config"
)

var logger = logr.Discard()

func Init(conf config.Logs) error {
	return InitWithOutput(conf, os.Stdout)
}

// InitWithOutput configures the global logger to write to out.
// logs.level 0 keeps logrus at info, each extra level unlocks one more logr verbosity.
func InitWithOutput(conf config.Logs, out io.Writer) error {
	if conf.Level < 0 {
		return fmt.Errorf("unexpected log level %d", conf.Level)
	}

	loggerImpl := logrus.New()

	loggerImpl.SetLevel(logrus.Level(conf.Level + int(logrus.InfoLevel)))
	loggerImpl.SetOutput(out)

	switch conf.Encoder {
	case config.EncoderTypeConsole:
		loggerImpl.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
		})
	case config.EncoderTypeJson:
		loggerImpl.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unexpected encoder value %v", conf.Encoder)
	}

	logger = logrusr.New(loggerImpl, logrusr.WithReportCaller())

	return nil
}

func Logger() logr.Logger {
	return logger
}

// Component returns the global logger scoped to a component name.
func Component(name string) logr.Logger {
	return logger.WithName(name)
}
