package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/push"

	"github.com/dd0wney/cluso-relaysim/pkg/simulation"
)

// DefaultSendTimeout bounds a send while no receiver is connected
const DefaultSendTimeout = 5 * time.Second

// Sender is the PUSH side of the bridge
type Sender struct {
	sock mangos.Socket
}

// Dial connects a sender to a receiver at addr
func Dial(addr string) (*Sender, error) {
	sock, err := push.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create PUSH socket: %w", err)
	}
	if err := sock.SetOption(mangos.OptionSendDeadline, DefaultSendTimeout); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to set send deadline: %w", err)
	}
	if err := sock.Dial(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Sender{sock: sock}, nil
}

// Send validates st and pushes its JSON form
func (s *Sender) Send(st simulation.Stimulus) error {
	if err := st.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode stimulus: %w", err)
	}
	return s.SendRaw(data)
}

// SendRaw pushes data without checking it
func (s *Sender) SendRaw(data []byte) error {
	if err := s.sock.Send(data); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}

// Close closes the socket
func (s *Sender) Close() error {
	return s.sock.Close()
}
