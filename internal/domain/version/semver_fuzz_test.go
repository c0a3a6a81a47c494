package version

import "testing"

// FuzzParse checks that Parse never panics and that anything it accepts
// round-trips through String back to an equal version.
func FuzzParse(f *testing.F) {
	seeds := []string{
		"1.2.3",
		"v1.2.3",
		"0.0.0",
		"2.0.0-rc.1",
		"1.3.0-dev.20250301.7",
		"1.2.3+build.5",
		"1.2.3-rc.1+sha.abc",
		"",
		"not-a-version",
		"1.2",
		"v",
		"-1.2.3",
		"1.2.3-",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		v, err := Parse(input)
		if err != nil {
			return
		}

		reparsed, err := Parse(v.String())
		if err != nil {
			t.Fatalf("String() output %q of accepted input %q does not reparse: %v",
				v.String(), input, err)
		}
		if !reparsed.Equal(v) || reparsed.Metadata() != v.Metadata() {
			t.Fatalf("round trip mismatch: %q -> %q -> %q", input, v.String(), reparsed.String())
		}
	})
}
