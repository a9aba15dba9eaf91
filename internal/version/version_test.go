package version

import "testing"

func TestString(t *testing.T) {
	t.Parallel()

	want := "ragkit " + Version + " (commit: " + Commit + ", built: " + BuildDate + ")"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
