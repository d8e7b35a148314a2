package model

// NumVoices is the fixed size of the voice pool.
const NumVoices = 48

// NumRanks is the fixed number of harmonic-function ranks.
const NumRanks = 8

// Voice is one of the 48 fixed-identity voice slots. A voice is never
// destroyed, only reset to inactive.
type Voice struct {
	ID        int
	Note      uint8
	Active    bool
	Sustained bool
}

// VoiceChange is the outbound tuple published for every voice whose
// state changed during a cycle. Volume is 0 or 1.
type VoiceChange struct {
	VoiceID int   `json:"voice_id"`
	Note    uint8 `json:"note"`
	Volume  int   `json:"volume"`
}

// CycleResult is what one completed allocation cycle hands to publishers.
type CycleResult struct {
	CycleID string        `json:"cycle_id"`
	Changes []VoiceChange `json:"changes"`
	Dropped int           `json:"dropped"`
}

type RankSnapshot struct {
	Number       int    `json:"number"`
	Priority     int    `json:"priority"`
	Tonicization int    `json:"tonicization"`
	GreyCode     [4]int `json:"grey_code"`
	GCI          int    `json:"gci"`
	Density      int    `json:"density"`
	PreviousGCI  int    `json:"previous_gci"`
}

type VoiceSnapshot struct {
	ID        int   `json:"id"`
	Note      uint8 `json:"note"`
	Active    bool  `json:"active"`
	Sustained bool  `json:"sustained"`
}

// SystemSnapshot is the read-only view handed to display collaborators
// between cycles.
type SystemSnapshot struct {
	KeyCenter int             `json:"key_center"`
	Sustain   bool            `json:"sustain"`
	Ranks     []RankSnapshot  `json:"ranks"`
	Voices    []VoiceSnapshot `json:"voices"`
}
