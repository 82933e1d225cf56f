package stats

// Sample is what one temporal unit contributes to the rate window.
type Sample struct {
	Headers  int
	Bytes    int
	Duration uint64
}

// window keeps the most recent temporal units covering about one second.
type window struct {
	samples  []Sample
	duration uint64
	headers  int
	bytes    int
}

func (w *window) push(s Sample) {
	w.samples = append(w.samples, s)
	w.duration += s.Duration
	w.headers += s.Headers
	w.bytes += s.Bytes
}

// trim drops samples from the front while the window is longer than limit.
// The newest sample is always kept.
func (w *window) trim(limit float64) {
	for len(w.samples) > 1 && float64(w.duration) > limit {
		s := w.samples[0]
		w.samples = w.samples[1:]
		w.duration -= s.Duration
		w.headers -= s.Headers
		w.bytes -= s.Bytes
	}
}

func (w *window) len() int {
	return len(w.samples)
}
