package observability

import (
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rl1809/marketplace/internal/config"
)

const instrumentationScope = "github.com/rl1809/marketplace"

// NewLogger builds a JSON console logger at level. With withOTel it also
// tees every entry into the global OpenTelemetry logger provider.
func NewLogger(level string, withOTel bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		lvl,
	)

	if withOTel {
		otelCore := otelzap.NewCore(instrumentationScope,
			otelzap.WithLoggerProvider(global.GetLoggerProvider()),
		)
		core = zapcore.NewTee(core, otelCore)
	}

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service.name", config.ServiceName)),
	), nil
}
