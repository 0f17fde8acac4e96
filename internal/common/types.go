package common

import "time"

// EventType represents the diagnostic event topics published on the event bus
type EventType string

// Predefined diagnostic event topics emitted by the profiler
const (
	TypeStarted         EventType = "started"           // Session became active
	TypeStopped         EventType = "stopped"           // Session became inactive
	TypeHighGCFrequency EventType = "high-gc-frequency" // GC count in the last minute exceeded threshold
	TypeHighMemoryUsage EventType = "high-memory-usage" // Heap usage exceeded threshold
	TypeSlowOperation   EventType = "slow-operation"    // A measured operation exceeded the slow threshold
	TypeProfileComplete EventType = "profile-complete"  // A capture finished and its artifact was registered
)

// Topics lists every diagnostic event topic, for consumers that subscribe to
// the full feed.
func Topics() []EventType {
	return []EventType{
		TypeStarted,
		TypeStopped,
		TypeHighGCFrequency,
		TypeHighMemoryUsage,
		TypeSlowOperation,
		TypeProfileComplete,
	}
}

// HighGCFrequencyEvent is the payload for TypeHighGCFrequency.
type HighGCFrequencyEvent struct {
	Count     int `json:"count"`     // GC events in the last 60 seconds
	Threshold int `json:"threshold"` // configured collections-per-minute limit
}

// HighMemoryUsageEvent is the payload for TypeHighMemoryUsage.
type HighMemoryUsageEvent struct {
	Current   uint64 `json:"current"`   // current heap usage in bytes
	Threshold uint64 `json:"threshold"` // configured limit in bytes
}

// SlowOperationEvent is the payload for TypeSlowOperation.
type SlowOperationEvent struct {
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration"`
	Threshold time.Duration `json:"threshold"`
}

// ProfileCompleteEvent is the payload for TypeProfileComplete.
type ProfileCompleteEvent struct {
	Type      string `json:"type"`
	ProfileID string `json:"profileId"`
	Filepath  string `json:"filepath"`
}
