package forecast

// window is a trailing buffer holding at most size values after trim.
type window struct {
	size   int
	values []float64
}

func newWindow(size int, initial []float64) *window {
	w := &window{size: size, values: make([]float64, 0, 2*size+1)}
	w.values = append(w.values, initial...)
	w.trim()
	return w
}

func (w *window) push(v float64) {
	w.values = append(w.values, v)
}

// trim drops all but the last size values, reusing the backing array.
func (w *window) trim() {
	if extra := len(w.values) - w.size; extra > 0 {
		n := copy(w.values, w.values[extra:])
		w.values = w.values[:n]
	}
}

func (w *window) len() int { return len(w.values) }

func (w *window) snapshot() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}
