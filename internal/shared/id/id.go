// Package id provides ULID generation for request, span and attempt ids.
//
// ULIDs are lexicographically sortable by creation time, which keeps log
// lines and trace spans for one preview flow naturally ordered. Each id kind
// carries a short prefix (req_*, span_*, att_*) so logs stay readable.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies an inbound API request (and its trace)
type RequestID string

// SpanID identifies one traced operation
type SpanID string

// AttemptID identifies one rendering attempt within a preview flow
type AttemptID string

const (
	RequestPrefix = "req"
	SpanPrefix    = "span"
	AttemptPrefix = "att"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic
// ordering inside the same millisecond.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewSpanID generates a new span ID
func NewSpanID() SpanID {
	return SpanID(Default().GenerateWithPrefix(SpanPrefix))
}

// NewAttemptID generates a new rendering attempt ID
func NewAttemptID() AttemptID {
	return AttemptID(Default().GenerateWithPrefix(AttemptPrefix))
}

func (id RequestID) String() string { return string(id) }
func (id SpanID) String() string    { return string(id) }
func (id AttemptID) String() string { return string(id) }

// IsValid checks if a string is a ULID, with or without a known prefix
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Parse parses a ULID string, stripping a "prefix_" if present
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}
