package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"connectrpc.com/connect"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func ledgerError(code connect.Code, kind string) error {
	err := connect.NewError(code, errors.New("ledger said no"))
	if kind != "" {
		err.Meta().Set(ErrorKindHeader, kind)
	}
	return err
}

func TestLoggingInterceptor(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantMsg   string
		wantKind  string
	}{
		{"success", nil, "INFO", "RPC ok", ""},
		{"validation", ledgerError(connect.CodeInvalidArgument, "validation"), "INFO", "RPC rejected", "validation"},
		{"state conflict", ledgerError(connect.CodeFailedPrecondition, "state_conflict"), "INFO", "RPC rejected", "state_conflict"},
		{"external failure", ledgerError(connect.CodeUnavailable, "external_failure"), "WARN", "RPC failed", "external_failure"},
		{"internal", ledgerError(connect.CodeInternal, "internal"), "ERROR", "RPC failed", "internal"},
		{"no header", ledgerError(connect.CodeUnauthenticated, ""), "INFO", "RPC rejected", "unauthenticated"},
		{"plain error", errors.New("boom"), "ERROR", "RPC failed", "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			next := func(context.Context, connect.AnyRequest) (connect.AnyResponse, error) {
				return nil, tt.err
			}
			ctx := WithAccount(context.Background(), "alice", "member")
			ctx = context.WithValue(ctx, chimw.RequestIDKey, "req-7")

			_, err := LoggingInterceptor(logger)(next)(ctx, connect.NewRequest(&struct{}{}))
			if err != tt.err {
				t.Fatalf("interceptor changed the error: %v", err)
			}

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
			}
			if entry["level"] != tt.wantLevel || entry["msg"] != tt.wantMsg {
				t.Errorf("level=%v msg=%v, want %s %q", entry["level"], entry["msg"], tt.wantLevel, tt.wantMsg)
			}
			if entry["account_id"] != "alice" || entry["request_id"] != "req-7" {
				t.Errorf("entry = %v, want account and request id", entry)
			}
			if tt.wantKind != "" && entry["kind"] != tt.wantKind {
				t.Errorf("kind = %v, want %s", entry["kind"], tt.wantKind)
			}
			if tt.wantKind == "" && entry["kind"] != nil {
				t.Errorf("unexpected kind on success: %v", entry["kind"])
			}
		})
	}
}
