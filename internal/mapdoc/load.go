package mapdoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	ErrEmptyDocument = errors.New("mapdoc: empty document")
	ErrBadGeometry   = errors.New("mapdoc: invalid geometry")
	ErrBadSpawn      = errors.New("mapdoc: spawn outside bounds")
	ErrBadPhysics    = errors.New("mapdoc: invalid physics settings")
	ErrBadGoal       = errors.New("mapdoc: invalid goal")
	ErrBadMode       = errors.New("mapdoc: unknown game mode")
)

// Load reads and validates a map document. Callers treat any error as fatal:
// the server refuses to start without a usable world description.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapdoc: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a raw map document.
func Parse(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	doc := &Document{Physics: DefaultPhysics()}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("mapdoc: decode: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks structural invariants; it never mutates the document.
func (d *Document) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrEmptyDocument)
	}
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: non-positive dimensions %gx%g", ErrBadGeometry, d.Width, d.Height)
	}
	if !KnownMode(d.Mode) {
		return fmt.Errorf("%w: %q", ErrBadMode, d.Mode)
	}
	if err := d.validateSpawn("team1", d.Team1.SpawnX, d.Team1.SpawnY); err != nil {
		return err
	}
	if err := d.validateSpawn("team2", d.Team2.SpawnX, d.Team2.SpawnY); err != nil {
		return err
	}
	if d.Ball != nil {
		if err := d.validateSpawn("ball", d.Ball.SpawnX, d.Ball.SpawnY); err != nil {
			return err
		}
	}
	if d.Mode == ModeFootball && d.Ball == nil {
		return fmt.Errorf("%w: football mode requires a ball spawn", ErrBadMode)
	}
	for i, obj := range d.Objects {
		if err := validateObject(i, obj); err != nil {
			return err
		}
	}
	for i, goal := range d.Goals {
		if goal.W <= 0 || goal.H <= 0 {
			return fmt.Errorf("%w: goal %d has non-positive extent", ErrBadGoal, i)
		}
		if goal.Team != "team1" && goal.Team != "team2" {
			return fmt.Errorf("%w: goal %d credited to unknown team %q", ErrBadGoal, i, goal.Team)
		}
	}
	return d.Physics.Validate()
}

func (d *Document) validateSpawn(name string, x, y float64) error {
	if x < 0 || y < 0 || x > d.Width || y > d.Height {
		return fmt.Errorf("%w: %s at (%g, %g)", ErrBadSpawn, name, x, y)
	}
	return nil
}

func validateObject(index int, obj Object) error {
	switch obj.Kind {
	case ObjectCircle:
		if obj.Radius <= 0 {
			return fmt.Errorf("%w: object %d circle with non-positive radius", ErrBadGeometry, index)
		}
	case ObjectRect:
		if obj.W <= 0 || obj.H <= 0 {
			return fmt.Errorf("%w: object %d rect with non-positive extent", ErrBadGeometry, index)
		}
	case ObjectLine:
		if obj.AX == obj.BX && obj.AY == obj.BY {
			return fmt.Errorf("%w: object %d degenerate line", ErrBadGeometry, index)
		}
	default:
		return fmt.Errorf("%w: object %d has unknown kind %q", ErrBadGeometry, index, obj.Kind)
	}
	for _, tag := range obj.Mask {
		switch tag {
		case MaskBall, MaskTeam1, MaskTeam2, MaskSnowball:
		default:
			return fmt.Errorf("%w: object %d has unknown mask tag %q", ErrBadGeometry, index, tag)
		}
	}
	return nil
}

// Validate checks the physics settings for values the simulation cannot run
// with. It is used both at load time and when a lobby command swaps the
// settings at runtime.
func (p PhysicsSettings) Validate() error {
	positives := []struct {
		name  string
		value float64
	}{
		{"playerRadius", p.PlayerRadius},
		{"playerMass", p.PlayerMass},
		{"snowballRadius", p.SnowballRadius},
		{"snowballMass", p.SnowballMass},
		{"snowballLifetimeSec", p.SnowballLifetimeSec},
		{"ballRadius", p.BallRadius},
		{"ballMass", p.BallMass},
	}
	for _, field := range positives {
		if field.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrBadPhysics, field.name, field.value)
		}
	}
	if p.FrictionPerFrame <= 0 || p.FrictionPerFrame > 1 {
		return fmt.Errorf("%w: frictionPerFrame must be in (0, 1], got %g", ErrBadPhysics, p.FrictionPerFrame)
	}
	if p.ShootCooldownSec < 0 {
		return fmt.Errorf("%w: shootCooldownSec must not be negative", ErrBadPhysics)
	}
	return nil
}

// MatchesMask reports whether the tag list contains the given tag. An empty
// mask matches nothing.
func MatchesMask(mask []MaskTag, tag MaskTag) bool {
	for _, t := range mask {
		if t == tag {
			return true
		}
	}
	return false
}
