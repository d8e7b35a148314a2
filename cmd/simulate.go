package cmd

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/fibril-audio/fibril/constants"
	"github.com/fibril-audio/fibril/engine"
	"github.com/fibril-audio/fibril/logging"
	"github.com/fibril-audio/fibril/model"
	"github.com/fibril-audio/fibril/pool"
	"github.com/fibril-audio/fibril/rank"
)

var (
	simulateCycles int
	simulateSeed   uint64
)

func init() {
	simulateCmd.Flags().IntVar(&simulateCycles, "cycles", 8, "number of allocation cycles to run")
	simulateCmd.Flags().Uint64Var(&simulateSeed, "seed", 1, "rng seed for control updates and sampling")
	rootCmd.AddCommand(simulateCmd)
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Runs offline allocation cycles",
	Long:  `Drives the engine with random control updates and prints the resulting voicings. Useful for eyeballing the allocator without a patch attached.`,
	Run: func(cmd *cobra.Command, args []string) {
		simulate()
	},
}

func simulate() {
	log := logging.NewDefaultLogger()
	log.SetLevel(logging.WarnLevel)

	registry := rank.NewRegistry()
	voicePool := pool.New()
	eng := engine.New(registry, voicePool, log, simulateSeed)
	runner := engine.NewRunner(eng, registry, voicePool, constants.InputWindow, log)

	rng := rand.New(rand.NewPCG(simulateSeed, simulateSeed^0x9e3779b9))

	for cycle := 1; cycle <= simulateCycles; cycle++ {
		for _, ev := range randomEvents(rng) {
			runner.Apply(ev)
		}
		res := runner.RunNow()
		printCycle(cycle, runner.Snapshot(), res)
	}
}

func randomEvents(rng *rand.Rand) []model.ControlEvent {
	var events []model.ControlEvent
	for i := 0; i < 1+rng.IntN(4); i++ {
		switch rng.IntN(4) {
		case 0:
			events = append(events, model.GreyCodeBitEvent{
				Rank:  1 + rng.IntN(model.NumRanks),
				Bit:   rng.IntN(4),
				Value: rng.IntN(2),
			})
		case 1:
			events = append(events, model.PriorityEvent{
				Rank:  1 + rng.IntN(model.NumRanks),
				Value: 1 + rng.IntN(model.NumRanks),
			})
		case 2:
			events = append(events, model.KeyCenterEvent{PitchClass: rng.IntN(12)})
		case 3:
			events = append(events, model.SustainEvent{On: rng.IntN(2) == 1})
		}
	}
	return events
}

func printCycle(cycle int, snap model.SystemSnapshot, res model.CycleResult) {
	fmt.Printf("=== cycle %v (key %v, sustain %v, %v changes, %v dropped)\n",
		cycle, snap.KeyCenter, snap.Sustain, len(res.Changes), res.Dropped)
	for _, r := range snap.Ranks {
		if r.Density > 0 {
			fmt.Printf("  rank %v: pri=%v ton=%v gci=%v density=%v\n",
				r.Number, r.Priority, r.Tonicization, r.GCI, r.Density)
		}
	}
	for _, v := range snap.Voices {
		if v.Active {
			flag := ""
			if v.Sustained {
				flag = " (sustained)"
			}
			fmt.Printf("  voice %02d: midi %v%s\n", v.ID, v.Note, flag)
		}
	}
}

func seedOrClock(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}
