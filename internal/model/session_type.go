package model

import (
	"errors"
	"fmt"
)

var ErrUnknownSessionType = errors.New("unknown session type")

type SessionType string

const (
	SessionTypeFreeConsultation SessionType = "free_consultation"
	SessionTypeIndividual       SessionType = "individual"
	SessionTypeCouples          SessionType = "couples"
)

// SessionTypeConfig is static configuration for a kind of session.
type SessionTypeConfig struct {
	Type            SessionType `json:"type"`
	Label           string      `json:"label"`
	DurationMinutes int         `json:"duration_minutes"`
}

var sessionTypes = []SessionTypeConfig{
	{Type: SessionTypeFreeConsultation, Label: "Free Consultation", DurationMinutes: 30},
	{Type: SessionTypeIndividual, Label: "Individual Session", DurationMinutes: 60},
	{Type: SessionTypeCouples, Label: "Couples Session", DurationMinutes: 90},
}

// SessionTypes returns all configured session types.
func SessionTypes() []SessionTypeConfig {
	out := make([]SessionTypeConfig, len(sessionTypes))
	copy(out, sessionTypes)
	return out
}

// LookupSessionType returns the configuration of a session type.
func LookupSessionType(t SessionType) (SessionTypeConfig, error) {
	for _, c := range sessionTypes {
		if c.Type == t {
			return c, nil
		}
	}
	return SessionTypeConfig{}, fmt.Errorf("%w: %q", ErrUnknownSessionType, t)
}

// IsFree reports whether the session consumes no credit.
func (t SessionType) IsFree() bool {
	return t == SessionTypeFreeConsultation
}
