package bicas

// Contain the ClientUpdater object, which publishes JSON-encoded messages
// giving the progress of a processing run.

import (
	"encoding/json"
	"fmt"
	"math"

	zmq "github.com/pebbe/zmq4"
)

// ClientUpdate carries the messages to be published on the status port.
type ClientUpdate struct {
	Tag   string
	State interface{}
}

// JSONFloat is a float64 that encodes NaN and infinities as JSON null, which
// plain encoding/json refuses to do.
type JSONFloat float64

// MarshalJSON writes null for non-finite values.
func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// encode returns the two frames (tag, JSON body) of one published update.
func (u ClientUpdate) encode() ([][]byte, error) {
	message, err := json.Marshal(u.State)
	if err != nil {
		return nil, fmt.Errorf("encoding %s update: %w", u.Tag, err)
	}
	return [][]byte{[]byte(u.Tag), message}, nil
}

// RunClientUpdater forwards any message from its input channel to the ZMQ publisher socket
// to publish any information that clients need to know. It returns when messages is closed.
// If the socket cannot be set up, the messages are still consumed (and dropped) so that
// senders never block, and the setup error is returned once messages is closed.
func RunClientUpdater(messages <-chan ClientUpdate, portstatus int) error {
	pubSocket, err := openPublisher(portstatus)
	if err != nil {
		ProblemLogger.Printf("status updates will not be published: %v", err)
		for range messages {
		}
		return err
	}
	defer pubSocket.Close()

	for update := range messages {
		frames, err := update.encode()
		if err != nil {
			ProblemLogger.Print(err)
			continue
		}
		if _, err := pubSocket.SendMessage(frames[0], frames[1]); err != nil {
			ProblemLogger.Printf("publishing %s update: %v", update.Tag, err)
		}
	}
	return nil
}

func openPublisher(portstatus int) (*zmq.Socket, error) {
	hostname := fmt.Sprintf("tcp://*:%d", portstatus)
	pubSocket, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, err
	}
	if err = pubSocket.Bind(hostname); err != nil {
		pubSocket.Close()
		return nil, fmt.Errorf("binding %s: %w", hostname, err)
	}
	return pubSocket, nil
}
