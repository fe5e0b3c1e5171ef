package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestGetEnvStr(t *testing.T) {
	t.Setenv("ORDERS_TEST_STR", "value")

	if got := GetEnvStr("ORDERS_TEST_STR", "fallback"); got != "value" {
		t.Errorf("GetEnvStr() = %q, want %q", got, "value")
	}

	if got := GetEnvStr("ORDERS_TEST_STR_MISSING", "fallback"); got != "fallback" {
		t.Errorf("GetEnvStr() = %q, want %q", got, "fallback")
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("ORDERS_TEST_INT", "42")
	t.Setenv("ORDERS_TEST_INT_BAD", "not-a-number")

	if got := GetEnvInt("ORDERS_TEST_INT", 7); got != 42 {
		t.Errorf("GetEnvInt() = %d, want 42", got)
	}

	if got := GetEnvInt("ORDERS_TEST_INT_BAD", 7); got != 7 {
		t.Errorf("GetEnvInt() with invalid value = %d, want default 7", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"yes", true},
		{"FALSE", false},
		{"0", false},
		{"no", false},
		{"garbage", true}, // falls back to default
	}

	for _, tc := range cases {
		t.Setenv("ORDERS_TEST_BOOL", tc.value)

		if got := GetEnvBool("ORDERS_TEST_BOOL", true); got != tc.want {
			t.Errorf("GetEnvBool(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("ORDERS_TEST_DURATION", "90s")

	if got := GetEnvDuration("ORDERS_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("GetEnvDuration() = %v, want 90s", got)
	}

	if got := GetEnvDuration("ORDERS_TEST_DURATION_MISSING", time.Minute); got != time.Minute {
		t.Errorf("GetEnvDuration() = %v, want 1m", got)
	}
}

func TestGetEnvLogLevel(t *testing.T) {
	cases := []struct {
		value string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo}, // unknown falls back
	}

	for _, tc := range cases {
		t.Setenv("ORDERS_TEST_LOG_LEVEL", tc.value)

		if got := GetEnvLogLevel("ORDERS_TEST_LOG_LEVEL", slog.LevelInfo); got != tc.want {
			t.Errorf("GetEnvLogLevel(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestParseCommaSeparatedList(t *testing.T) {
	got := ParseCommaSeparatedList(" a, b ,, c ")
	want := []string{"a", "b", "c"}

	if len(got) != len(want) {
		t.Fatalf("ParseCommaSeparatedList() = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseCommaSeparatedList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if got := ParseCommaSeparatedList(""); len(got) != 0 {
		t.Errorf("ParseCommaSeparatedList(\"\") = %v, want empty", got)
	}
}
