package config

import (
	"testing"
	"time"
)

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty is unset", raw: "", want: 0},
		{name: "plain", raw: "45s", want: 45 * time.Second},
		{name: "padded", raw: " 2m ", want: 2 * time.Minute},
		{name: "garbage", raw: "soon", wantErr: true},
		{name: "negative", raw: "-1s", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := ParseDurationField("dispatch.attempt_timeout", tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseDurationField(%q) expected error", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationField(%q) error: %v", tc.raw, err)
			}
			if d != tc.want {
				t.Fatalf("ParseDurationField(%q) = %v, want %v", tc.raw, d, tc.want)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("verify.delay", "", 2*time.Minute); err != nil || d != 2*time.Minute {
		t.Fatalf("unset = (%v, %v), want default", d, err)
	}
	if d, err := ParseDurationOrDefault("verify.delay", "0s", 2*time.Minute); err != nil || d != 2*time.Minute {
		t.Fatalf("explicit zero = (%v, %v), want default", d, err)
	}
	if d, err := ParseDurationOrDefault("verify.delay", "30s", 2*time.Minute); err != nil || d != 30*time.Second {
		t.Fatalf("set = (%v, %v), want 30s", d, err)
	}
}
