package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageInvocationStart Stage = "INVOCATION_START"
	StageInvocationDone  Stage = "INVOCATION_DONE"
	StageInvocationError Stage = "INVOCATION_ERROR"
	StageProviderFetch   Stage = "PROVIDER_FETCH"
	StageExtraction      Stage = "EXTRACTION"
	StagePersistence     Stage = "PERSISTENCE"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for provider fetches.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of an enrichment invocation.
type Event struct {
	// InvocationID uniquely identifies an invocation using the 16-byte UUID form.
	InvocationID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle or provider milestone occurred.
	Stage Stage
	// WebpageID identifies the webpage being enriched.
	WebpageID string
	// Provider optionally scopes fetch and extraction events to a provider label.
	Provider string
	// StatusClass groups provider HTTP response codes (2xx, 4xx, etc).
	StatusClass StatusClass
	// Fields carries the populated field count for extraction events.
	Fields int64
	// Nodes carries the graph node update count for completion events.
	Nodes int64
	// Dur captures execution latency for fetches and invocation completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.InvocationID == [16]byte{} {
		return errors.New("invocation id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageInvocationStart, StageInvocationDone, StageInvocationError, StagePersistence:
	case StageProviderFetch:
		if e.Provider == "" {
			return errors.New("provider fetch requires provider")
		}
		if e.StatusClass == "" {
			return errors.New("provider fetch requires status class")
		}
	case StageExtraction:
		if e.Provider == "" {
			return errors.New("extraction requires provider")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// InvocationUUID converts the binary invocation ID to uuid.UUID for sinks.
func (e Event) InvocationUUID() uuid.UUID {
	return uuid.UUID(e.InvocationID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for provider fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
