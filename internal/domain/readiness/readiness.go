// Package readiness models whether a technology's backend analytics can be
// compared yet.
//
//	Unstarted --observe--> Processing | Ready | Missing
//	Processing --observe--> Processing | Ready | Missing
//	Ready, Missing: terminal until the technology is tracked again
package readiness

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/turtacn/TechIntel/internal/domain/payload"
)

// State is the readiness of one technology.
type State int

const (
	Unstarted State = iota
	Processing
	Ready
	Missing
)

var stateNames = [...]string{"unstarted", "processing", "ready", "missing"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	name := strings.ToLower(string(b))
	for i, n := range stateNames {
		if n == name {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("readiness: unknown state %q", name)
}

// Terminal reports whether polling should stop in s.
func (s State) Terminal() bool {
	return s == Ready || s == Missing
}

// Observation is the outcome of one status poll.
type Observation struct {
	// StatusCode is the HTTP status of the poll; 0 when the request failed.
	StatusCode int

	// Body is the raw response body.
	Body []byte

	// Err is a transport failure.
	Err error
}

// Classify maps one poll to the state it indicates:
//
//   - transport error, non-2xx status, HTML body, or undecodable JSON: Missing
//   - a JSON body whose "status" is "processing": Processing
//   - any other JSON body: Ready
func Classify(o Observation) State {
	if o.Err != nil || o.StatusCode < http.StatusOK || o.StatusCode >= http.StatusMultipleChoices {
		return Missing
	}
	body := bytes.TrimSpace(o.Body)
	if len(body) == 0 || body[0] == '<' {
		return Missing
	}
	p, err := payload.Decode(body)
	if err != nil {
		return Missing
	}
	if p.Processing() {
		return Processing
	}
	return Ready
}

// Next returns the state after observing o in current.  Terminal states do
// not change.
func Next(current State, o Observation) State {
	if current.Terminal() {
		return current
	}
	return Classify(o)
}
