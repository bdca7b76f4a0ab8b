package engine

import "testing"

func TestJoinSegments(t *testing.T) {
	segs := []Segment{
		{Start: 0, End: 2.5, Text: " Dobar dan,"},
		{Start: 2.5, End: 6, Text: " prijavljujem štetu na vozilu."},
	}
	if got := JoinSegments(segs); got != "Dobar dan, prijavljujem štetu na vozilu." {
		t.Fatalf("JoinSegments = %q", got)
	}
	if got := JoinSegments(nil); got != "" {
		t.Fatalf("JoinSegments(nil) = %q", got)
	}
}
