package sim

import "testing"

func TestApplyDeltaUpsertsAndRemoves(t *testing.T) {
	base := Snapshot{
		Tick: 10,
		Players: []PlayerView{
			{ID: "p1", Team: TeamOne, X: 100, Y: 200},
			{ID: "p2", Team: TeamTwo, X: 300, Y: 400},
		},
		Snowballs: []SnowballView{
			{ID: "snowball-1", X: 500, Y: 500, Life: 300},
		},
		Match: MatchView{Phase: PhasePlaying, Mode: "fight"},
	}

	delta := Delta{
		Patches: []Patch{
			{Kind: PatchPlayerMotion, EntityID: "p1", Payload: PlayerMotionPayload{X: 150, Y: 250, VX: 10, Rot: 9000}},
			{Kind: PatchPlayerMotion, EntityID: "p3", Payload: PlayerMotionPayload{X: 777, Y: 888}},
			{Kind: PatchPlayerMeta, EntityID: "p3", Payload: PlayerMetaPayload{Nick: "newcomer", Team: TeamOne}},
			{Kind: PatchSnowballMotion, EntityID: "snowball-2", Payload: SnowballMotionPayload{X: 10, Y: 20, Life: 290}},
			{Kind: PatchMatchState, EntityID: "match", Payload: MatchStatePayload{Phase: PhasePlaying, Mode: "fight", Team1Score: 1}},
		},
		Removals: []Removal{
			{EntityID: "p2", Kind: PatchPlayerRemoved, Tick: 12},
			{EntityID: "snowball-1", Kind: PatchSnowballRemoved, Tick: 11},
		},
	}

	next, err := ApplyDelta(base, delta, 15)
	if err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	if next.Tick != 15 {
		t.Fatalf("expected tick 15, got %d", next.Tick)
	}
	if len(next.Players) != 2 {
		t.Fatalf("expected 2 players, got %+v", next.Players)
	}
	if next.Players[0].ID != "p1" || next.Players[0].X != 150 || next.Players[0].Rot != 9000 {
		t.Fatalf("unexpected p1 state: %+v", next.Players[0])
	}
	if next.Players[0].Team != TeamOne {
		t.Fatal("motion patch must not disturb roster state")
	}
	if next.Players[1].ID != "p3" || next.Players[1].Nick != "newcomer" || next.Players[1].X != 777 {
		t.Fatalf("unexpected upserted player: %+v", next.Players[1])
	}
	if len(next.Snowballs) != 1 || next.Snowballs[0].ID != "snowball-2" {
		t.Fatalf("unexpected snowballs: %+v", next.Snowballs)
	}
	if next.Match.Team1Score != 1 {
		t.Fatalf("expected match state patch applied, got %+v", next.Match)
	}
}

func TestApplyDeltaRejectsBadPayload(t *testing.T) {
	delta := Delta{Patches: []Patch{{Kind: PatchPlayerMotion, EntityID: "p1", Payload: "garbage"}}}
	if _, err := ApplyDelta(Snapshot{}, delta, 1); err == nil {
		t.Fatal("expected payload type mismatch to error")
	}
}

func TestApplyDeltaRejectsUnknownKind(t *testing.T) {
	delta := Delta{Patches: []Patch{{Kind: "warp", EntityID: "p1"}}}
	if _, err := ApplyDelta(Snapshot{}, delta, 1); err == nil {
		t.Fatal("expected unknown patch kind to error")
	}
}

func TestCentiRounding(t *testing.T) {
	cases := []struct {
		in   float64
		want Centi
	}{
		{0, 0},
		{1.234, 123},
		{1.2399, 124},
		{-1.2399, -124},
		{300.0, 30000},
	}
	for _, tc := range cases {
		if got := ToCenti(tc.in); got != tc.want {
			t.Fatalf("ToCenti(%g) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if got := Centi(123).Float(); got != 1.23 {
		t.Fatalf("Float() = %g, want 1.23", got)
	}
}
