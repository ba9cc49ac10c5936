package models

// TimedSegment is one piece of recognized speech with its timing.
// Segments arrive from the recognition engine in temporal order and are
// consumed in that order; this package does not re-sort them.
type TimedSegment struct {
	Start float64 `json:"start"` // seconds, >= 0
	End   float64 `json:"end"`   // seconds, > Start
	Text  string  `json:"text"`
}
