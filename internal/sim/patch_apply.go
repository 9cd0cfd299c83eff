package sim

import (
	"fmt"
	"sort"
)

// ApplyDelta replays a delta onto a baseline snapshot, returning the snapshot
// a client would reconstruct at the given tick. Motion patches upsert their
// entity so newly spawned players and snowballs materialise from the delta
// alone.
func ApplyDelta(base Snapshot, delta Delta, tick uint64) (Snapshot, error) {
	players := make(map[string]PlayerView, len(base.Players))
	for _, p := range base.Players {
		players[p.ID] = p
	}
	snowballs := make(map[string]SnowballView, len(base.Snowballs))
	for _, s := range base.Snowballs {
		snowballs[s.ID] = s
	}
	var ball *BallView
	if base.Ball != nil {
		copied := *base.Ball
		ball = &copied
	}
	match := base.Match

	for _, patch := range delta.Patches {
		switch patch.Kind {
		case PatchPlayerMotion:
			payload, ok := payloadAsPlayerMotion(patch.Payload)
			if !ok {
				return Snapshot{}, fmt.Errorf("apply delta: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			view := players[patch.EntityID]
			view.ID = patch.EntityID
			view.X = payload.X
			view.Y = payload.Y
			view.VX = payload.VX
			view.VY = payload.VY
			view.Rot = payload.Rot
			view.Charge = payload.Charge
			players[patch.EntityID] = view
		case PatchPlayerMeta:
			payload, ok := payloadAsPlayerMeta(patch.Payload)
			if !ok {
				return Snapshot{}, fmt.Errorf("apply delta: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			view := players[patch.EntityID]
			view.ID = patch.EntityID
			view.Nick = payload.Nick
			view.Team = payload.Team
			players[patch.EntityID] = view
		case PatchSnowballMotion:
			payload, ok := payloadAsSnowballMotion(patch.Payload)
			if !ok {
				return Snapshot{}, fmt.Errorf("apply delta: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			view := snowballs[patch.EntityID]
			view.ID = patch.EntityID
			view.X = payload.X
			view.Y = payload.Y
			view.VX = payload.VX
			view.VY = payload.VY
			view.Life = payload.Life
			snowballs[patch.EntityID] = view
		case PatchBallMotion:
			payload, ok := payloadAsBallMotion(patch.Payload)
			if !ok {
				return Snapshot{}, fmt.Errorf("apply delta: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			ball = &BallView{X: payload.X, Y: payload.Y, VX: payload.VX, VY: payload.VY}
		case PatchMatchState:
			payload, ok := payloadAsMatchState(patch.Payload)
			if !ok {
				return Snapshot{}, fmt.Errorf("apply delta: unexpected payload %T for %q", patch.Payload, patch.Kind)
			}
			match = payload
		default:
			return Snapshot{}, fmt.Errorf("apply delta: unsupported patch kind %q", patch.Kind)
		}
	}

	for _, removal := range delta.Removals {
		switch removal.Kind {
		case PatchPlayerRemoved:
			delete(players, removal.EntityID)
		case PatchSnowballRemoved:
			delete(snowballs, removal.EntityID)
		default:
			return Snapshot{}, fmt.Errorf("apply delta: unsupported removal kind %q", removal.Kind)
		}
	}

	next := Snapshot{Tick: tick, Match: match, Ball: ball}
	if len(players) > 0 {
		next.Players = make([]PlayerView, 0, len(players))
		for _, view := range players {
			next.Players = append(next.Players, view)
		}
		sort.Slice(next.Players, func(i, j int) bool { return next.Players[i].ID < next.Players[j].ID })
	}
	if len(snowballs) > 0 {
		next.Snowballs = make([]SnowballView, 0, len(snowballs))
		for _, view := range snowballs {
			next.Snowballs = append(next.Snowballs, view)
		}
		sort.Slice(next.Snowballs, func(i, j int) bool { return next.Snowballs[i].ID < next.Snowballs[j].ID })
	}
	return next, nil
}

func payloadAsPlayerMotion(value any) (PlayerMotionPayload, bool) {
	switch v := value.(type) {
	case PlayerMotionPayload:
		return v, true
	case *PlayerMotionPayload:
		if v == nil {
			return PlayerMotionPayload{}, false
		}
		return *v, true
	default:
		return PlayerMotionPayload{}, false
	}
}

func payloadAsPlayerMeta(value any) (PlayerMetaPayload, bool) {
	switch v := value.(type) {
	case PlayerMetaPayload:
		return v, true
	case *PlayerMetaPayload:
		if v == nil {
			return PlayerMetaPayload{}, false
		}
		return *v, true
	default:
		return PlayerMetaPayload{}, false
	}
}

func payloadAsSnowballMotion(value any) (SnowballMotionPayload, bool) {
	switch v := value.(type) {
	case SnowballMotionPayload:
		return v, true
	case *SnowballMotionPayload:
		if v == nil {
			return SnowballMotionPayload{}, false
		}
		return *v, true
	default:
		return SnowballMotionPayload{}, false
	}
}

func payloadAsBallMotion(value any) (BallMotionPayload, bool) {
	switch v := value.(type) {
	case BallMotionPayload:
		return v, true
	case *BallMotionPayload:
		if v == nil {
			return BallMotionPayload{}, false
		}
		return *v, true
	default:
		return BallMotionPayload{}, false
	}
}

func payloadAsMatchState(value any) (MatchStatePayload, bool) {
	switch v := value.(type) {
	case MatchStatePayload:
		return v, true
	case *MatchStatePayload:
		if v == nil {
			return MatchStatePayload{}, false
		}
		return *v, true
	default:
		return MatchStatePayload{}, false
	}
}
