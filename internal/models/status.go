package models

import (
	"encoding/json"
	"fmt"
)

// Status is the decode state of a SourceImage. The set of implementations is
// closed: Pending, Decoding, Ready and Failed.
type Status interface {
	State() string
	isStatus()
}

type Pending struct{}

type Decoding struct{}

type Ready struct {
	Width  int
	Height int
}

type Failed struct {
	Reason string
}

func (Pending) State() string  { return "pending" }
func (Decoding) State() string { return "decoding" }
func (Ready) State() string    { return "ready" }
func (Failed) State() string   { return "failed" }

func (Pending) isStatus()  {}
func (Decoding) isStatus() {}
func (Ready) isStatus()    {}
func (Failed) isStatus()   {}

type statusJSON struct {
	State  string `json:"state"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s Pending) MarshalJSON() ([]byte, error)  { return json.Marshal(statusJSON{State: s.State()}) }
func (s Decoding) MarshalJSON() ([]byte, error) { return json.Marshal(statusJSON{State: s.State()}) }

func (s Ready) MarshalJSON() ([]byte, error) {
	return json.Marshal(statusJSON{State: s.State(), Width: s.Width, Height: s.Height})
}

func (s Failed) MarshalJSON() ([]byte, error) {
	return json.Marshal(statusJSON{State: s.State(), Reason: s.Reason})
}

// UnmarshalStatus is the inverse of the MarshalJSON methods above
func UnmarshalStatus(data []byte) (Status, error) {
	var raw statusJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	switch raw.State {
	case "pending":
		return Pending{}, nil
	case "decoding":
		return Decoding{}, nil
	case "ready":
		return Ready{Width: raw.Width, Height: raw.Height}, nil
	case "failed":
		return Failed{Reason: raw.Reason}, nil
	default:
		return nil, fmt.Errorf("unknown image state %q", raw.State)
	}
}

// UnmarshalJSON lets clients round-trip session snapshots.
func (s *SourceImage) UnmarshalJSON(data []byte) error {
	type alias SourceImage
	var raw struct {
		alias
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = SourceImage(raw.alias)
	if len(raw.Status) == 0 {
		s.Status = Pending{}
		return nil
	}

	status, err := UnmarshalStatus(raw.Status)
	if err != nil {
		return err
	}
	s.Status = status
	return nil
}
