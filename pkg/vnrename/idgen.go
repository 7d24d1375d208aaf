package vnrename

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces operation identifiers. IDs are
// timestamp-prefixed so history sorts naturally, with a random suffix
// for uniqueness within the same second.
type IDGenerator func(kind string) string

var sequenceCounter atomic.Uint64

// TimestampIDGenerator generates IDs like
// "batch_20240131_154502_3f9c1a27". This is the generator the services
// use by default; the schema keys every table by these strings.
func TimestampIDGenerator(kind string) string {
	ts := time.Now().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s", kind, ts, uuid.NewString()[:8])
}

// SequenceIDGenerator generates sequential IDs (useful for testing).
func SequenceIDGenerator(kind string) string {
	seq := sequenceCounter.Add(1)
	return fmt.Sprintf("%s-%d", kind, seq)
}

// ResetSequenceCounter resets the sequence counter (for testing).
func ResetSequenceCounter() {
	sequenceCounter.Store(0)
}
