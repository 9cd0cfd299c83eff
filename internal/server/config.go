package server

import (
	"time"

	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
)

const (
	writeWait         = 10 * time.Second
	heartbeatInterval = 2 * time.Second
)

// HubConfig tunes the session manager and the simulation it drives.
type HubConfig struct {
	TickRate              int
	CommandCapacity       int
	PerActorLimit         int
	StalenessBound        uint64
	KeyframeIntervalTicks uint64
	HeartbeatTimeout      time.Duration
	ViolationLimit        uint64
	JournalCapacity       int
	JournalMaxAge         time.Duration
	Seed                  int64
	HorizonTicks          uint64
}

// DefaultHubConfig returns the production defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		TickRate:              sim.DefaultTickRate,
		CommandCapacity:       1024,
		PerActorLimit:         32,
		StalenessBound:        sim.DefaultStalenessBound,
		KeyframeIntervalTicks: 60,
		HeartbeatTimeout:      3 * heartbeatInterval,
		ViolationLimit:        10,
		JournalCapacity:       32,
		JournalMaxAge:         30 * time.Second,
	}
}

// HeartbeatInterval reports the cadence clients are expected to ping at.
func HeartbeatInterval() time.Duration { return heartbeatInterval }
