package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// ErrorKindHeader carries the ledger error kind on RPC errors, e.g.
// "validation" or "state_conflict".
const ErrorKindHeader = "Ledger-Error-Kind"

// LoggingInterceptor returns a Connect interceptor that writes one line per
// RPC with the caller, request id and, on failure, the ledger error kind.
// Rejections the caller caused log at info, collaborator failures at warn
// and anything unclassified at error. A nil logger means slog.Default().
// Install it after RequireAuth so the caller is known.
func LoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []slog.Attr{
				slog.String("procedure", req.Spec().Procedure),
				slog.String("account_id", GetAccountID(ctx)),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			}
			if id := chimw.GetReqID(ctx); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}

			level, msg := slog.LevelInfo, "RPC ok"
			if err != nil {
				kind, code := ErrorKind(err)
				attrs = append(attrs,
					slog.String("kind", kind),
					slog.String("code", code.String()),
					slog.Any("error", err),
				)
				level, msg = kindLevel(kind), "RPC rejected"
				if level > slog.LevelInfo {
					msg = "RPC failed"
				}
			}

			l := logger
			if l == nil {
				l = slog.Default()
			}
			l.LogAttrs(ctx, level, msg, attrs...)
			return resp, err
		}
	}
}

// ErrorKind reports the ledger error kind and Connect code of an RPC error.
// Errors without a kind header are named after their code, and errors that
// are not Connect errors count as internal.
func ErrorKind(err error) (string, connect.Code) {
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		return "internal", connect.CodeUnknown
	}
	if kind := cerr.Meta().Get(ErrorKindHeader); kind != "" {
		return kind, cerr.Code()
	}
	switch cerr.Code() {
	case connect.CodeInternal, connect.CodeUnknown:
		return "internal", cerr.Code()
	}
	return cerr.Code().String(), cerr.Code()
}

func kindLevel(kind string) slog.Level {
	switch kind {
	case "internal":
		return slog.LevelError
	case "external_failure", "unavailable", "deadline_exceeded":
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
