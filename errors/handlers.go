package errors

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorHandler recovers panics raised by next, logs them with the stack and
// answers with an InternalError envelope.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID := w.Header().Get("X-Request-ID")
					logger.Error("panic recovered",
						zap.Any("error", err),
						zap.ByteString("stacktrace", debug.Stack()),
						zap.String("request_id", requestID),
					)
					WriteError(w, NewInternalError(requestID, nil))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// LogError logs err with its request ID. LucidErrors are logged with their
// type, code and details.
func LogError(logger *zap.Logger, err error, requestID string) {
	var lucidErr *LucidError
	if As(err, &lucidErr) {
		logger.Error("request error",
			zap.String("error_type", string(lucidErr.Type)),
			zap.String("message", lucidErr.Message),
			zap.Int("code", lucidErr.Code),
			zap.String("request_id", requestID),
			zap.Any("details", lucidErr.Details),
			zap.NamedError("cause", lucidErr.Unwrap()),
		)
		return
	}
	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
