package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmynk/splitledger/internal/auth"
)

const testSecret = "test-secret-key-for-ledgerctl-tests"

// writeConfig writes a TOML config pointing at a temp database.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
[database]
path = %q

[vault]
path = %q

[auth]
jwt_secret = %q
%s
`, filepath.Join(dir, "ledger.db"), filepath.Join(dir, "vault.db"), testSecret, extra)

	path := filepath.Join(dir, "ledger.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func run(t *testing.T, configPath, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func mustRun(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, err := run(t, configPath, "", args...)
	if err != nil {
		t.Fatalf("ledgerctl %v failed: %v\n%s", args, err, out)
	}
	return out
}

func TestBootstrap(t *testing.T) {
	cfg := writeConfig(t, "")

	mustRun(t, cfg, "migrate")

	t.Run("settings before bootstrap fails", func(t *testing.T) {
		if _, err := run(t, cfg, "", "settings"); err == nil {
			t.Error("Expected settings to fail before bootstrap")
		}
	})

	t.Run("requires admin", func(t *testing.T) {
		if _, err := run(t, cfg, "", "bootstrap"); err == nil {
			t.Error("Expected bootstrap without admin to fail")
		}
	})

	out := mustRun(t, cfg, "bootstrap", "--admin", "root")
	if !strings.Contains(out, "admin:                 root") {
		t.Errorf("Unexpected bootstrap output:\n%s", out)
	}

	t.Run("second bootstrap keeps settings", func(t *testing.T) {
		out := mustRun(t, cfg, "bootstrap", "--admin", "someone-else")
		if !strings.Contains(out, "root") || strings.Contains(out, "someone-else") {
			t.Errorf("Expected original admin, got:\n%s", out)
		}
	})

	t.Run("settings", func(t *testing.T) {
		out := mustRun(t, cfg, "settings")
		if !strings.Contains(out, "payment fee:           1%") {
			t.Errorf("Unexpected settings output:\n%s", out)
		}
	})
}

func TestGroupAndBill(t *testing.T) {
	cfg := writeConfig(t, "")

	groupID := mustRun(t, cfg, "group", "create", "--name", "Roommates", "-m", "alice", "-m", "bob")
	if groupID == "" {
		t.Fatal("Expected a group ID")
	}

	members := mustRun(t, cfg, "group", "add-members", groupID, "--member", "carol")
	if members != "alice,bob,carol" {
		t.Errorf("members = %q, want alice,bob,carol", members)
	}

	list := mustRun(t, cfg, "group", "list")
	if !strings.Contains(list, groupID) || !strings.Contains(list, "Roommates") {
		t.Errorf("Unexpected group list:\n%s", list)
	}

	billID := mustRun(t, cfg, "bill", "create", "--group", groupID, "--total", "900", "--title", "Rent")
	if billID == "" {
		t.Error("Expected a bill ID")
	}

	tests := []struct {
		name string
		args []string
	}{
		{"zero total", []string{"bill", "create", "--group", groupID, "--total", "0"}},
		{"unknown group", []string{"bill", "create", "--group", "missing", "--total", "10"}},
		{"missing name", []string{"group", "create", "-m", "alice"}},
		{"no members to add", []string{"group", "add-members", groupID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, cfg, "", tt.args...); err == nil {
				t.Errorf("Expected ledgerctl %v to fail", tt.args)
			}
		})
	}
}

func TestToken(t *testing.T) {
	const key = "correct-horse-battery-staple"

	hash, err := run(t, writeConfig(t, ""), key+"\n", "hash-key")
	if err != nil {
		t.Fatalf("hash-key failed: %v", err)
	}
	if err := auth.VerifyOperatorKey(hash, key); err != nil {
		t.Fatalf("hash-key produced an unusable hash: %v", err)
	}

	cfg := writeConfig(t, fmt.Sprintf("operator_key_hash = %q\n", hash))

	t.Run("wrong key", func(t *testing.T) {
		_, err := run(t, cfg, "", "token", "--account", "alice", "--operator-key", "not-the-right-key")
		if !errors.Is(err, auth.ErrInvalidOperatorKey) {
			t.Errorf("Expected ErrInvalidOperatorKey, got %v", err)
		}
	})

	t.Run("key from environment", func(t *testing.T) {
		t.Setenv(EnvOperatorKey, key)
		token := mustRun(t, cfg, "token", "--account", "alice")

		claims, err := auth.NewJWTManager(testSecret, "splitledger", 0).Validate(token)
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if claims.AccountID != "alice" || claims.Role != auth.RoleMember {
			t.Errorf("claims = %+v", claims)
		}
	})

	t.Run("operator role", func(t *testing.T) {
		token := mustRun(t, cfg, "token", "--account", "root", "--role", auth.RoleOperator, "--operator-key", key)
		claims, err := auth.NewJWTManager(testSecret, "splitledger", 0).Validate(token)
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if claims.Role != auth.RoleOperator {
			t.Errorf("Role = %q, want operator", claims.Role)
		}
	})

	t.Run("weak key", func(t *testing.T) {
		if _, err := run(t, cfg, "short\n", "hash-key"); !errors.Is(err, auth.ErrWeakOperatorKey) {
			t.Errorf("Expected ErrWeakOperatorKey, got %v", err)
		}
	})
}
