package env

import "testing"

func TestGetFallsBack(t *testing.T) {
	t.Setenv("FULFILLMENT_TEST_SET", "value")
	if got := Get("FULFILLMENT_TEST_SET", "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
	if got := Get("FULFILLMENT_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestFirstPrefersEarlierKeys(t *testing.T) {
	t.Setenv("FULFILLMENT_TEST_A", "")
	t.Setenv("FULFILLMENT_TEST_B", "b")
	t.Setenv("FULFILLMENT_TEST_C", "c")
	if got := First("x", "FULFILLMENT_TEST_A", "FULFILLMENT_TEST_B", "FULFILLMENT_TEST_C"); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
	if got := First("x", "FULFILLMENT_TEST_A"); got != "x" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
