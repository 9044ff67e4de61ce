package jobs

import "testing"

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Fatal("run IDs repeat")
	}
	if !HasPrefix(a, PrefixRun) {
		t.Errorf("%q is not a run ID", a)
	}
	if len(a) != len(PrefixRun)+32 {
		t.Errorf("len(%q) = %d", a, len(a))
	}
}

func TestHasPrefix(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{NewID(PrefixIngest), true},
		{"ing-not-a-uuid", false},
		{NewID(PrefixRun), false},
		{"", false},
	}
	for _, tt := range tests {
		if got := HasPrefix(tt.id, PrefixIngest); got != tt.want {
			t.Errorf("HasPrefix(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
