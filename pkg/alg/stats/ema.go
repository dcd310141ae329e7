package stats

// EMA is an exponential moving average with a fixed smoothing factor,
// used to track request latency as observations stream in.
type EMA struct {
	alpha       float64
	value       float64
	initialized bool
}

// NewEMA creates an EMA with smoothing factor alpha in (0, 1]. Higher
// alpha weighs recent observations more heavily.
func NewEMA(alpha float64) *EMA {
	return &EMA{alpha: alpha}
}

// Update feeds one observation and returns the updated average. The
// first observation seeds the average directly.
func (e *EMA) Update(v float64) float64 {
	if !e.initialized {
		e.value = v
		e.initialized = true

		return e.value
	}

	e.value = e.alpha*v + (1-e.alpha)*e.value

	return e.value
}

// Value returns the current average, 0 before any Update.
func (e *EMA) Value() float64 {
	return e.value
}

// Initialized reports whether Update has been called at least once.
func (e *EMA) Initialized() bool {
	return e.initialized
}
