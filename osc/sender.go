package osc

import (
	"fmt"

	goosc "github.com/hypebeast/go-osc/osc"

	"github.com/fibril-audio/fibril/logging"
	"github.com/fibril-audio/fibril/model"
)

// Sender publishes voice deltas to the synthesis patch after each
// cycle. It satisfies the runner's Publisher interface.
type Sender struct {
	client *goosc.Client
	log    logging.Logger
}

func NewSender(host string, port int, log logging.Logger) *Sender {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Sender{
		client: goosc.NewClient(host, port),
		log:    log,
	}
}

// PublishCycle sends one /voice_{id} message per changed voice.
// Send failures are logged per voice and never abort the batch.
func (s *Sender) PublishCycle(res model.CycleResult) {
	for _, c := range res.Changes {
		msg := goosc.NewMessage(fmt.Sprintf("/voice_%d", c.VoiceID))
		msg.Append(int32(c.Note))
		msg.Append(int32(c.Volume))
		if err := s.client.Send(msg); err != nil {
			s.log.Error(err, "voice send failed", logging.Fields{
				"voice": c.VoiceID, "cycle": res.CycleID,
			})
		}
	}
	s.log.Debug("cycle published", logging.Fields{
		"cycle": res.CycleID, "changes": len(res.Changes), "dropped": res.Dropped,
	})
}
