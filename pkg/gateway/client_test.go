package gateway

import (
	"testing"

	"github.com/marketsideco/marketside-backend/pkg/enums"
)

func TestEventStatusMapping(t *testing.T) {
	cases := []struct {
		raw      string
		want     enums.PaymentEventStatus
		terminal bool
	}{
		{"COMPLETED", enums.PaymentEventStatusSuccess, true},
		{"APPROVED", enums.PaymentEventStatusSuccess, true},
		{"completed", enums.PaymentEventStatusSuccess, true},
		{"FAILED", enums.PaymentEventStatusFailed, true},
		{"CANCELED", enums.PaymentEventStatusFailed, true},
		{"PENDING", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, terminal := EventStatus(tc.raw)
		if terminal != tc.terminal {
			t.Fatalf("EventStatus(%q) terminal = %v, want %v", tc.raw, terminal, tc.terminal)
		}
		if got != tc.want {
			t.Fatalf("EventStatus(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(""); err != nil || env != sandboxEnv {
		t.Fatalf("expected empty env to default to sandbox, got %q %v", env, err)
	}
	if env, err := normalizeEnv(" Production "); err != nil || env != productionEnv {
		t.Fatalf("expected production, got %q %v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatal("expected invalid env error")
	}
}
