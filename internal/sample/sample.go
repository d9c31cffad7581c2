// Package sample defines the CPM measurement exchanged between acquisition
// and upload, and the aggregator that reduces bursts of them to one average.
package sample

import (
	"fmt"
	"time"
)

// NoReading is the CPM value of a sentinel sample.
const NoReading = -1

// Sample is one radiation measurement in counts per minute.
type Sample struct {
	CPM       int       `json:"cpm"`
	Timestamp time.Time `json:"timestamp"`
}

// Sentinel returns the "no valid reading" sample stamped at t.
func Sentinel(t time.Time) Sample {
	return Sample{CPM: NoReading, Timestamp: t.UTC()}
}

// New returns a sample with the timestamp normalised to UTC.
func New(cpm int, t time.Time) Sample {
	return Sample{CPM: cpm, Timestamp: t.UTC()}
}

// Valid reports whether s carries a real reading.
func (s Sample) Valid() bool {
	return s.CPM != NoReading
}

func (s Sample) String() string {
	return fmt.Sprintf("CPM = %d\t%s", s.CPM, s.Timestamp.Format(time.DateTime))
}
