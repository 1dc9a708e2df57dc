package engines

// Window is a bounded history of indicator values with ring-buffer
// semantics: appending past capacity evicts the oldest value. Each
// engine owns its windows exclusively; no locking is needed because an
// engine instance never calculates concurrently with itself.
type Window struct {
	data []float64
	cap  int
}

// NewWindow creates a window holding at most capacity values.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 252
	}
	return &Window{data: make([]float64, 0, capacity), cap: capacity}
}

// Append adds v, evicting the oldest value when full.
func (w *Window) Append(v float64) {
	if len(w.data) == w.cap {
		copy(w.data, w.data[1:])
		w.data[len(w.data)-1] = v
		return
	}
	w.data = append(w.data, v)
}

// Len returns the number of stored values.
func (w *Window) Len() int { return len(w.data) }

// Cap returns the maximum window length.
func (w *Window) Cap() int { return w.cap }

// Values returns the stored values oldest-first. The caller must not
// mutate the returned slice.
func (w *Window) Values() []float64 { return w.data }

// Latest returns the most recent value, or 0 when empty.
func (w *Window) Latest() float64 {
	if len(w.data) == 0 {
		return 0
	}
	return w.data[len(w.data)-1]
}

// Previous returns the value before the latest, or 0 when unavailable.
func (w *Window) Previous() float64 {
	if len(w.data) < 2 {
		return 0
	}
	return w.data[len(w.data)-2]
}
