package engines

import "testing"

func TestWindowEviction(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4} {
		w.Append(v)
	}
	if w.Len() != 3 {
		t.Fatalf("len %d, want 3", w.Len())
	}
	vals := w.Values()
	if vals[0] != 2 || vals[2] != 4 {
		t.Fatalf("unexpected values %v", vals)
	}
}

func TestWindowLatestPrevious(t *testing.T) {
	w := NewWindow(5)
	if w.Latest() != 0 || w.Previous() != 0 {
		t.Fatalf("empty window must report zeros")
	}
	w.Append(1)
	w.Append(2)
	if w.Latest() != 2 || w.Previous() != 1 {
		t.Fatalf("latest=%v previous=%v", w.Latest(), w.Previous())
	}
}
