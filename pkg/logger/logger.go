package logger

import (
	"io"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request_id"

// Initialize builds the logger for env.
func Initialize(env string) (*zap.Logger, error) {
	return InitializeWithWriter(env, nil)
}

// InitializeWithWriter builds the logger for env and, when cloudWatchWriter is
// non-nil, tees every entry into it as JSON.
func InitializeWithWriter(env string, cloudWatchWriter io.Writer) (*zap.Logger, error) {
	config := configFor(env)

	if cloudWatchWriter == nil {
		return config.Build()
	}

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(config.EncoderConfig),
		zapcore.AddSync(os.Stdout),
		zap.NewAtomicLevelAt(config.Level.Level()),
	)

	jsonConfig := config.EncoderConfig
	jsonConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cwCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(jsonConfig),
		zapcore.AddSync(cloudWatchWriter),
		zap.NewAtomicLevelAt(config.Level.Level()),
	)

	return zap.New(zapcore.NewTee(consoleCore, cwCore), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func configFor(env string) zap.Config {
	if env == "production" {
		config := zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return config
	}
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return config
}

// FromGin returns base annotated with the request ID stored on c, if any.
func FromGin(c *gin.Context, base *zap.Logger) *zap.Logger {
	if rid := c.GetString(RequestIDKey); rid != "" {
		return base.With(zap.String(RequestIDKey, rid))
	}
	return base
}
