// Package osc adapts the wire protocol: inbound control messages decode
// to typed events at the boundary, outbound voice changes encode to
// /voice_{id} messages.
package osc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fibril-audio/fibril/model"
)

// bitPatterns maps the wire spelling of a grey-code bit to its index.
var bitPatterns = map[string]int{
	"1000": 0,
	"0100": 1,
	"0010": 2,
	"0001": 3,
}

// ParseMessage decodes one OSC address/value pair into a control event.
// The address scheme follows the MaxMSP patch: /R{n}_1000../0001 for
// grey-code bits, /R{n}_pos for priority, /R{n}_ton for tonicization,
// /sustain and /keyCenter for the globals.
func ParseMessage(address string, value int) (model.ControlEvent, error) {
	switch address {
	case "/sustain":
		return model.SustainEvent{On: value != 0}, nil
	case "/keyCenter":
		return model.KeyCenterEvent{PitchClass: value}, nil
	}

	if !strings.HasPrefix(address, "/R") {
		return nil, fmt.Errorf("%w: unknown address %q", model.ErrInvalidParameter, address)
	}
	rest := address[2:]
	sep := strings.IndexByte(rest, '_')
	if sep < 0 {
		return nil, fmt.Errorf("%w: malformed rank address %q", model.ErrInvalidParameter, address)
	}
	rankNum, err := strconv.Atoi(rest[:sep])
	if err != nil {
		return nil, fmt.Errorf("%w: malformed rank number in %q", model.ErrInvalidParameter, address)
	}
	suffix := rest[sep+1:]

	if bit, ok := bitPatterns[suffix]; ok {
		bitValue := 0
		if value != 0 {
			bitValue = 1
		}
		return model.GreyCodeBitEvent{Rank: rankNum, Bit: bit, Value: bitValue}, nil
	}
	switch suffix {
	case "pos":
		return model.PriorityEvent{Rank: rankNum, Value: value}, nil
	case "ton":
		return model.TonicizationEvent{Rank: rankNum, Value: value}, nil
	}
	return nil, fmt.Errorf("%w: unknown rank suffix %q", model.ErrInvalidParameter, address)
}

// coerceInt accepts the argument types MaxMSP is known to emit.
func coerceInt(arg any) (int, bool) {
	switch v := arg.(type) {
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
