package activity

import (
	"time"

	"github.com/openshift-assisted/fleet-telemetry/internal/domain/entity"
)

type Config struct {
	// ActiveWindow is how recent a moving report must be for the entity to be active.
	ActiveWindow time.Duration
	// IdleWindow is how recent any report must be for the entity not to be inactive.
	IdleWindow time.Duration
	// MovingSpeed is the speed above which an entity is considered moving.
	MovingSpeed float64

	FastInterval   time.Duration
	MediumInterval time.Duration
	SlowInterval   time.Duration

	HighActivityRatio   float64
	MediumActivityRatio float64
}

func DefaultConfig() Config {
	return Config{
		ActiveWindow:        5 * time.Minute,
		IdleWindow:          30 * time.Minute,
		MovingSpeed:         1,
		FastInterval:        10 * time.Second,
		MediumInterval:      15 * time.Second,
		SlowInterval:        30 * time.Second,
		HighActivityRatio:   0.5,
		MediumActivityRatio: 0.2,
	}
}

// Classifier buckets entities into tiers and turns a tier mix into a polling interval.
type Classifier struct {
	config Config
}

// New normalizes config so that intervals and ratios are ordered, which keeps
// RecommendedInterval monotonic whatever the input.
func New(config Config) Classifier {
	defaults := DefaultConfig()

	if config.ActiveWindow <= 0 {
		config.ActiveWindow = defaults.ActiveWindow
	}

	if config.IdleWindow < config.ActiveWindow {
		config.IdleWindow = config.ActiveWindow
	}

	if config.SlowInterval <= 0 {
		config.SlowInterval = defaults.SlowInterval
	}

	if config.MediumInterval <= 0 || config.MediumInterval > config.SlowInterval {
		config.MediumInterval = config.SlowInterval
	}

	if config.FastInterval <= 0 || config.FastInterval > config.MediumInterval {
		config.FastInterval = config.MediumInterval
	}

	if config.HighActivityRatio < config.MediumActivityRatio {
		config.HighActivityRatio = config.MediumActivityRatio
	}

	return Classifier{config: config}
}

func (c Classifier) Classify(e entity.Entity, now time.Time) entity.Tier {
	if e.Position == nil || e.Position.Timestamp.IsZero() {
		return entity.TierInactive
	}

	age := now.Sub(e.Position.Timestamp)

	switch {
	case age <= c.config.ActiveWindow && e.Position.Speed > c.config.MovingSpeed:
		return entity.TierActive
	case age <= c.config.IdleWindow:
		return entity.TierIdle
	default:
		return entity.TierInactive
	}
}

// RecommendedInterval is a step function of the active ratio. An empty distribution gets the slowest interval.
func (c Classifier) RecommendedInterval(tiers []entity.Tier) time.Duration {
	if len(tiers) == 0 {
		return c.config.SlowInterval
	}

	active := 0

	for _, t := range tiers {
		if t == entity.TierActive {
			active++
		}
	}

	ratio := float64(active) / float64(len(tiers))

	switch {
	case ratio > c.config.HighActivityRatio:
		return c.config.FastInterval
	case ratio > c.config.MediumActivityRatio:
		return c.config.MediumInterval
	default:
		return c.config.SlowInterval
	}
}

// Distribution counts entities per tier.
func Distribution(entities []entity.Entity) map[entity.Tier]int {
	ret := map[entity.Tier]int{
		entity.TierActive:   0,
		entity.TierIdle:     0,
		entity.TierInactive: 0,
	}

	for _, e := range entities {
		ret[e.Tier]++
	}

	return ret
}
