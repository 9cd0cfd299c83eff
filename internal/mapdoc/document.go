package mapdoc

// Document is the parsed default_map.json. It is loaded once at startup and
// never mutated afterwards; the simulation reads geometry and spawn data from
// it on every tick without locking.
type Document struct {
	Name    string          `json:"name" jsonschema:"title=Map name,minLength=1"`
	Width   float64         `json:"width" jsonschema:"title=World width,description=Playable width in world units"`
	Height  float64         `json:"height" jsonschema:"title=World height,description=Playable height in world units"`
	Mode    string          `json:"mode,omitempty" jsonschema:"title=Game mode,description=Match rules applied on start"`
	Objects []Object        `json:"objects"`
	Physics PhysicsSettings `json:"physics"`
	Team1   TeamSpawn       `json:"team1"`
	Team2   TeamSpawn       `json:"team2"`
	Ball    *BallSpawn      `json:"ball,omitempty"`
	Goals   []Goal          `json:"goals,omitempty"`
}

// ObjectKind discriminates static map geometry.
type ObjectKind string

const (
	ObjectCircle ObjectKind = "circle"
	ObjectRect   ObjectKind = "rect"
	ObjectLine   ObjectKind = "line"
)

// MaskTag selects which body classes a map object collides with.
type MaskTag string

const (
	MaskBall     MaskTag = "ball"
	MaskTeam1    MaskTag = "team1"
	MaskTeam2    MaskTag = "team2"
	MaskSnowball MaskTag = "snowball"
)

// Object is a single static geometry entry. Circle entries use X/Y/Radius,
// rect entries use X/Y/W/H, line entries use AX/AY/BX/BY.
type Object struct {
	Kind   ObjectKind `json:"kind" jsonschema:"title=Object kind"`
	X      float64    `json:"x,omitempty"`
	Y      float64    `json:"y,omitempty"`
	Radius float64    `json:"radius,omitempty"`
	W      float64    `json:"w,omitempty"`
	H      float64    `json:"h,omitempty"`
	AX     float64    `json:"ax,omitempty"`
	AY     float64    `json:"ay,omitempty"`
	BX     float64    `json:"bx,omitempty"`
	BY     float64    `json:"by,omitempty"`
	Factor float64    `json:"factor" jsonschema:"description=Bounce multiplier applied on contact"`
	Color  Color      `json:"color"`
	IsHole bool       `json:"isHole,omitempty" jsonschema:"description=Bodies entering the object fall out of play"`
	Mask   []MaskTag  `json:"mask"`
}

// Color is an 8-bit RGBA quad forwarded verbatim to clients.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// TeamSpawn anchors where members of a team reset between rounds.
type TeamSpawn struct {
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
}

// BallSpawn anchors the match ball for modes that use one.
type BallSpawn struct {
	SpawnX float64 `json:"spawnX"`
	SpawnY float64 `json:"spawnY"`
}

// Goal is an axis-aligned scoring area credited to the attacking team.
type Goal struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
	Team string  `json:"team" jsonschema:"description=Team credited when a ball enters"`
}

// PhysicsSettings tunes the shared body simulation. Values ship with the map
// so every client interprets motion the same way the server does.
type PhysicsSettings struct {
	PlayerRadius float64 `json:"playerRadius"`
	PlayerMass   float64 `json:"playerMass"`

	SnowballRadius      float64 `json:"snowballRadius"`
	SnowballMass        float64 `json:"snowballMass"`
	SnowballLifetimeSec float64 `json:"snowballLifetimeSec"`

	PlayerBounciness   float64 `json:"playerBounciness"`
	SnowballBounciness float64 `json:"snowballBounciness"`
	BallRadius         float64 `json:"ballRadius"`
	BallMass           float64 `json:"ballMass"`
	BallBounciness     float64 `json:"ballBounciness"`

	FrictionPerFrame float64 `json:"frictionPerFrame"`
	RecoilPower      float64 `json:"recoilPower"`
	ShootCooldownSec float64 `json:"shootCooldownSec"`
}

// DefaultPhysics returns the tuning used when the map omits a field.
func DefaultPhysics() PhysicsSettings {
	return PhysicsSettings{
		PlayerRadius:        18.0,
		PlayerMass:          1.0,
		SnowballRadius:      8.0,
		SnowballMass:        0.5,
		SnowballLifetimeSec: 3.0,
		PlayerBounciness:    0.9,
		SnowballBounciness:  0.9,
		BallRadius:          10.0,
		BallMass:            1.0,
		BallBounciness:      0.8,
		FrictionPerFrame:    0.98,
		RecoilPower:         1.2,
		ShootCooldownSec:    0.5,
	}
}

// Modes the server understands. Unknown modes fail validation so a map
// authored for a newer build cannot silently degrade.
const (
	ModeFight    = "fight"
	ModeFootball = "football"
)

// KnownMode reports whether the mode string names a supported rule set.
func KnownMode(mode string) bool {
	switch mode {
	case "", ModeFight, ModeFootball:
		return true
	}
	return false
}
