package osc

import (
	"fmt"

	goosc "github.com/hypebeast/go-osc/osc"

	"github.com/fibril-audio/fibril/logging"
	"github.com/fibril-audio/fibril/model"
)

// Applier is the inbound side of the cycle runner.
type Applier interface {
	Apply(ev model.ControlEvent)
}

// Server listens for control messages over UDP and funnels every
// decoded event into the runner. Unknown or malformed messages are
// logged and dropped.
type Server struct {
	applier Applier
	log     logging.Logger
	srv     *goosc.Server
}

func NewServer(port int, applier Applier, log logging.Logger) *Server {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	s := &Server{applier: applier, log: log}
	s.srv = &goosc.Server{
		Addr:       fmt.Sprintf("127.0.0.1:%d", port),
		Dispatcher: s,
	}
	return s
}

// ListenAndServe blocks serving the UDP socket.
func (s *Server) ListenAndServe() error {
	s.log.Info("osc listener started", logging.Fields{"addr": s.srv.Addr})
	return s.srv.ListenAndServe()
}

// Dispatch implements goosc.Dispatcher, flattening bundles into their
// messages.
func (s *Server) Dispatch(packet goosc.Packet) {
	switch p := packet.(type) {
	case *goosc.Message:
		s.handle(p)
	case *goosc.Bundle:
		for _, msg := range p.Messages {
			s.handle(msg)
		}
		for _, b := range p.Bundles {
			s.Dispatch(b)
		}
	}
}

func (s *Server) handle(msg *goosc.Message) {
	if len(msg.Arguments) == 0 {
		s.log.Warn("message without arguments", logging.Fields{"address": msg.Address})
		return
	}
	value, ok := coerceInt(msg.Arguments[0])
	if !ok {
		s.log.Warn("unsupported argument type", logging.Fields{
			"address": msg.Address, "arg": fmt.Sprintf("%T", msg.Arguments[0]),
		})
		return
	}
	ev, err := ParseMessage(msg.Address, value)
	if err != nil {
		s.log.Warn("message dropped", logging.Fields{
			"address": msg.Address, "reason": err.Error(),
		})
		return
	}
	s.applier.Apply(ev)
}
