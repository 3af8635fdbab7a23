package ctx

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const (
	ConsumerIDKey = "consumerID"
	LoggerKey     = "logger"
)

func SetConsumerID(ctx *fasthttp.RequestCtx, id uint) {
	ctx.SetUserValue(ConsumerIDKey, id)
}

func ConsumerIDFromCtx(ctx *fasthttp.RequestCtx) (uint, bool) {
	v := ctx.UserValue(ConsumerIDKey)
	if v == nil {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func SetLogger(ctx *fasthttp.RequestCtx, log *zap.Logger) {
	ctx.SetUserValue(LoggerKey, log)
}

// LoggerFromCtx returns the request-scoped logger, or a no-op logger when
// none was attached.
func LoggerFromCtx(ctx *fasthttp.RequestCtx) *zap.Logger {
	if log, ok := ctx.UserValue(LoggerKey).(*zap.Logger); ok && log != nil {
		return log
	}
	return zap.NewNop()
}
