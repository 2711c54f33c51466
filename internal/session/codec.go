package session

import (
	"encoding/json"
	"errors"
)

var errHalfSession = errors.New("session: token and user must be present together")

// encode renders the full state as stored: {"token":...,"user":...}.
func encode(s State) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decode parses a stored state. Anything that is not a well-formed, complete
// or empty session is an error.
func decode(raw string) (State, error) {
	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return State{}, err
	}
	hasToken := s.Token != nil && *s.Token != ""
	hasUser := s.User != nil
	if hasToken != hasUser {
		return State{}, errHalfSession
	}
	if !hasToken {
		return State{}, nil
	}
	return s, nil
}
