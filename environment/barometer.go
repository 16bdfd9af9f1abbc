package environment

// Barometer is the read side of a polled temperature/pressure driver as seen
// by displays, loggers and sinks. Readings are the last known values and may
// be zero; Initialized and Failed tell whether they are fresh.
type Barometer interface {
	Name() string
	Temperature() float64
	Pressure() float64
	Initialized() bool
	Failed() bool
}

// HasReading reports whether b holds a measured value. A driver enters its
// reading state before the first poll completes, so Initialized alone is not
// enough; a valid pressure is never zero.
func HasReading(b Barometer) bool {
	return b.Initialized() && !b.Failed() && b.Pressure() != 0
}
