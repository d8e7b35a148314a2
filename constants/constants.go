package constants

import (
	"os"
	"strconv"
	"time"
)

// Ports follow the original MaxMSP patch wiring.
const (
	DefaultListenPort = 1761
	DefaultSendPort   = 8998
	DefaultSendHost   = "127.0.0.1"
	DefaultHTTPAddr   = ":8080"
)

// InputWindow is how long inbound control updates are coalesced before
// an allocation cycle fires. Rapid bursts of bit-level grey-code updates
// collapse into a single pass.
const InputWindow = 220 * time.Millisecond

// Allocation tunables.
const (
	// RootForceProbability is the share of a rank's probability mass
	// pushed onto its root pitch class when the root is unvoiced.
	// Near-deterministic, not absolute.
	RootForceProbability = 0.85

	// PerfectFifthBoost multiplies weights that form a perfect 4th, 5th
	// or octave with a currently sounding voice.
	PerfectFifthBoost = 4.0

	// GaussianWidth is the register-preference spread in semitones,
	// read as ~3 standard deviations (1.5 octaves).
	GaussianWidth = 18.0

	// GaussianStrength blends the register curve into the weights.
	// 1.0 is the pure curve; 0 disables it.
	GaussianStrength = 0.9

	// VoiceLeadingStrength scales the 1-2 semitone directional bias.
	VoiceLeadingStrength = 2.0
)

// Hard range block: nothing is ever voiced below LowestNote or above
// HighestNote.
const (
	LowestNote  = 15
	HighestNote = 112
)

// MiddleC anchors key-center pitch classes to a register.
const MiddleC = 60

func GetListenPort() int {
	return envInt("FIBRIL_LISTEN_PORT", DefaultListenPort)
}

func GetSendPort() int {
	return envInt("FIBRIL_SEND_PORT", DefaultSendPort)
}

func GetSendHost() string {
	if host := os.Getenv("FIBRIL_SEND_HOST"); host != "" {
		return host
	}
	return DefaultSendHost
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}
