package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_INT", "abc")
	if got := Int("ENVUTIL_TEST_INT", 7); got != 7 {
		t.Fatalf("Int: want=%d got=%d", 7, got)
	}
	t.Setenv("ENVUTIL_TEST_INT", " 12 ")
	if got := Int("ENVUTIL_TEST_INT", 7); got != 12 {
		t.Fatalf("Int: want=%d got=%d", 12, got)
	}
}

func TestBoolVariants(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_BOOL", "off")
	if Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("Bool(off): want=false")
	}
	t.Setenv("ENVUTIL_TEST_BOOL", "maybe")
	if !Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("Bool(maybe): want default true")
	}
}

func TestDurations(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_MS", "250")
	if got := Millis("ENVUTIL_TEST_MS", time.Second); got != 250*time.Millisecond {
		t.Fatalf("Millis: want=%s got=%s", 250*time.Millisecond, got)
	}
	t.Setenv("ENVUTIL_TEST_S", "0")
	if got := Seconds("ENVUTIL_TEST_S", 3*time.Second); got != 3*time.Second {
		t.Fatalf("Seconds: want=%s got=%s", 3*time.Second, got)
	}
}
