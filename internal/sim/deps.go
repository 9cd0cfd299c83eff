package sim

import (
	"math/rand"

	"github.com/lampaBiurkowa/spin-snowball/internal/telemetry"
	"github.com/lampaBiurkowa/spin-snowball/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation engine.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
	RNG       *rand.Rand
}
