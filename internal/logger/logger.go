package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()

	logPath := os.Getenv("LOG_FILE")
	if logPath == "" {
		logPath = "api.log"
	}

	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		Logger.Fatal(err)
	}

	Logger.SetOutput(logFile)
	Logger.SetFormatter(&logrus.JSONFormatter{}) // Use JSON format for structured logs
	Logger.SetLevel(logrus.InfoLevel)
}

// LogEvent logs structured events
func LogEvent(level logrus.Level, message string, fields logrus.Fields) {
	Logger.WithFields(fields).Log(level, message)
}
