package classify

import (
	"reflect"
	"testing"
)

func TestClassifyServiceMarker(t *testing.T) {
	argv := []string{"puppet agent: applying configuration", "--verbose"}
	got := Classify(argv, "")

	if !got.IsService {
		t.Error("expected service classification for daemonized argv")
	}
	want := []string{DefaultBinary, "agent", "--onetime"}
	if !reflect.DeepEqual(got.Argv, want) {
		t.Errorf("normalized argv = %q, want %q", got.Argv, want)
	}
}

func TestClassifyServiceMarkerCustomBinary(t *testing.T) {
	got := Classify([]string{"puppet agent"}, "/usr/bin/puppet")

	want := []string{"/usr/bin/puppet", "agent", "--onetime"}
	if !reflect.DeepEqual(got.Argv, want) {
		t.Errorf("normalized argv = %q, want %q", got.Argv, want)
	}
}

func TestClassifyNoTestFlag(t *testing.T) {
	argv := []string{"puppet", "agent", "--verbose", "--environment", "production"}
	got := Classify(argv, "")

	if !got.IsService {
		t.Error("expected service classification when no test flag present")
	}
	want := append(append([]string{}, argv...), "--onetime")
	if !reflect.DeepEqual(got.Argv, want) {
		t.Errorf("normalized argv = %q, want %q", got.Argv, want)
	}
	// The input must not be mutated by the append.
	if argv[len(argv)-1] != "production" {
		t.Errorf("input argv was mutated: %q", argv)
	}
}

func TestClassifyTestFlag(t *testing.T) {
	for _, flag := range []string{"--test", "-t"} {
		argv := []string{"puppet", "agent", flag}
		got := Classify(argv, "")

		if got.IsService {
			t.Errorf("argv with %s should not classify as service", flag)
		}
		if !reflect.DeepEqual(got.Argv, argv) {
			t.Errorf("argv with %s should pass through unchanged, got %q", flag, got.Argv)
		}
	}
}

func TestIsNoop(t *testing.T) {
	tests := []struct {
		argv []string
		want bool
	}{
		{[]string{"puppet", "agent", "--test", "--noop"}, true},
		{[]string{"puppet", "agent", "--noop", "--test"}, true},
		{[]string{"puppet", "agent", "--test"}, false},
		{[]string{"puppet", "agent", "--no-noop", "--test"}, false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsNoop(tt.argv); got != tt.want {
			t.Errorf("IsNoop(%q) = %t, want %t", tt.argv, got, tt.want)
		}
	}
}
