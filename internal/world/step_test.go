package world

import (
	"math"
	"testing"

	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
)

func near(t *testing.T, got, want, tol float64, what string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s: got %v, want %v (tolerance %v)", what, got, want, tol)
	}
}

func TestTickAdvancesEvenInLobby(t *testing.T) {
	w := newTestWorld(t, testDoc())
	for i := 0; i < 3; i++ {
		w.Step()
	}
	if w.CurrentTick() != 3 {
		t.Fatalf("expected tick 3, got %d", w.CurrentTick())
	}
}

func TestRotationAccumulatesCharge(t *testing.T) {
	w := newTestWorld(t, testDoc())
	joinTeam(t, w, "p1", sim.TeamOne)
	startMatch(t, w, 0, 0)
	mustApply(t, w, moveCmd("p1", 3, false, true, false))

	w.Step()
	p := w.players["p1"]
	near(t, p.rotDeg, -90+rotationDegPerSec/60, 1e-9, "rotation after one tick")
	near(t, p.spinTimer, 1.0/60, 1e-9, "charge after one tick")

	for i := 0; i < 120; i++ {
		w.Step()
	}
	if p.spinTimer != spinChargeCapSec {
		t.Fatalf("expected charge capped at %v, got %v", spinChargeCapSec, p.spinTimer)
	}
}

func TestRotationWrapsPastFullTurn(t *testing.T) {
	w := newTestWorld(t, testDoc())
	joinTeam(t, w, "p1", sim.TeamOne)
	startMatch(t, w, 0, 0)
	mustApply(t, w, moveCmd("p1", 3, true, false, false))

	// 180 deg/s to the left wraps -90 past -360 within two seconds.
	for i := 0; i < 150; i++ {
		w.Step()
	}
	p := w.players["p1"]
	if p.rotDeg < -360 || p.rotDeg > 360 {
		t.Fatalf("expected rotation wrapped, got %v", p.rotDeg)
	}
}

func TestShootIsEdgeTriggered(t *testing.T) {
	w := newTestWorld(t, testDoc())
	joinTeam(t, w, "p1", sim.TeamOne)
	startMatch(t, w, 0, 0)

	mustApply(t, w, moveCmd("p1", 3, false, false, true))
	if len(w.snowballs) != 1 {
		t.Fatalf("expected one snowball, got %d", len(w.snowballs))
	}
	s := w.snowballs["snowball-1"]
	physics := w.Physics()
	near(t, s.y, 300-(physics.PlayerRadius+physics.SnowballRadius), 1e-9, "spawn offset")
	near(t, s.vy, -snowballBaseSpeed, 1e-9, "uncharged speed")
	near(t, s.life, physics.SnowballLifetimeSec, 1e-9, "initial lifetime")

	p := w.players["p1"]
	near(t, p.vy, snowballBaseSpeed*0.45/3.0, 1e-9, "recoil")
	if p.cooldown != physics.ShootCooldownSec {
		t.Fatalf("expected cooldown armed, got %v", p.cooldown)
	}

	// Holding the button does not stream projectiles.
	mustApply(t, w, moveCmd("p1", 4, false, false, true))
	if len(w.snowballs) != 1 {
		t.Fatalf("expected held button to not fire, got %d snowballs", len(w.snowballs))
	}

	// Re-pressing inside the cooldown window is swallowed too.
	mustApply(t, w, moveCmd("p1", 5, false, false, false))
	mustApply(t, w, moveCmd("p1", 6, false, false, true))
	if len(w.snowballs) != 1 {
		t.Fatalf("expected cooldown to gate the shot, got %d snowballs", len(w.snowballs))
	}

	for i := 0; i < 40; i++ {
		w.Step()
	}
	mustApply(t, w, moveCmd("p1", 7, false, false, false))
	mustApply(t, w, moveCmd("p1", 8, false, false, true))
	if _, ok := w.snowballs["snowball-2"]; !ok {
		t.Fatal("expected a second snowball after the cooldown elapsed")
	}
}

func TestChargedShotScalesSpeedAndRecoil(t *testing.T) {
	w := newTestWorld(t, testDoc())
	joinTeam(t, w, "p1", sim.TeamOne)
	startMatch(t, w, 0, 0)

	p := w.players["p1"]
	p.spinTimer = spinChargeCapSec
	mustApply(t, w, moveCmd("p1", 3, false, false, true))

	s := w.snowballs["snowball-1"]
	wantSpeed := snowballBaseSpeed + snowballChargeSpeed
	near(t, math.Hypot(s.vx, s.vy), wantSpeed, 1e-9, "charged speed")
	near(t, math.Hypot(p.vx, p.vy), wantSpeed*(0.45+1.0)/3.0, 1e-9, "charged recoil")
	if p.spinTimer != 0 {
		t.Fatalf("expected charge spent, got %v", p.spinTimer)
	}
}

func TestSnowballDragAndExpiry(t *testing.T) {
	w := newTestWorld(t, testDoc())
	joinTeam(t, w, "p1", sim.TeamOne)
	startMatch(t, w, 0, 0)
	mustApply(t, w, moveCmd("p1", 3, false, false, true))

	s := w.snowballs["snowball-1"]
	vyBefore := s.vy
	w.Step()
	near(t, s.vy, vyBefore*snowballDragPerTick, 1e-9, "per-tick drag")
	near(t, s.life, w.Physics().SnowballLifetimeSec-1.0/60, 1e-9, "lifetime decay")

	for i := 0; i < 200; i++ {
		w.Step()
	}
	if len(w.snowballs) != 0 {
		t.Fatalf("expected snowball expired and removed, got %d", len(w.snowballs))
	}
	snap := w.Snapshot()
	if len(snap.Snowballs) != 0 {
		t.Fatalf("expected no snowballs in the snapshot, got %d", len(snap.Snowballs))
	}
}

func TestFrictionSlowsBodies(t *testing.T) {
	w := newTestWorld(t, testDoc())
	joinTeam(t, w, "p1", sim.TeamOne)
	startMatch(t, w, 0, 0)

	p := w.players["p1"]
	p.vx = 100
	w.Step()
	want := 100 * math.Pow(w.Physics().FrictionPerFrame, 1)
	near(t, p.vx, want, 1e-6, "friction after one tick")
	near(t, p.x, 100+100.0/60, 1e-6, "position integration")
}

func TestPlayersClampToBounds(t *testing.T) {
	w := newTestWorld(t, testDoc())
	joinTeam(t, w, "p1", sim.TeamOne)
	startMatch(t, w, 0, 0)

	p := w.players["p1"]
	p.x = 1
	p.vx = -100000
	w.Step()
	if p.x != 0 {
		t.Fatalf("expected clamp at the left edge, got %v", p.x)
	}
}

func TestPauseFreezesSimulation(t *testing.T) {
	w := newTestWorld(t, testDoc())
	joinTeam(t, w, "p1", sim.TeamOne)
	startMatch(t, w, 0, 0)
	mustApply(t, w, moveCmd("p1", 3, false, true, false))
	w.Step()

	mustApply(t, w, lobbyCmd("host", 100, sim.LobbyCommand{Action: sim.LobbyPause}))
	p := w.players["p1"]
	rotBefore := p.rotDeg
	clockBefore := w.match.clockSec
	tickBefore := w.CurrentTick()

	for i := 0; i < 5; i++ {
		w.Step()
	}
	if p.rotDeg != rotBefore {
		t.Fatalf("expected rotation frozen, got %v", p.rotDeg)
	}
	if w.match.clockSec != clockBefore {
		t.Fatalf("expected clock frozen, got %v", w.match.clockSec)
	}
	if w.CurrentTick() != tickBefore+5 {
		t.Fatalf("expected ticks to keep advancing while paused, got %d", w.CurrentTick())
	}

	// Moves are swallowed while paused.
	mustApply(t, w, moveCmd("p1", 4, true, false, false))
	if p.rotatingLeft {
		t.Fatal("expected paused world to ignore input")
	}

	mustApply(t, w, lobbyCmd("host", 101, sim.LobbyCommand{Action: sim.LobbyResume}))
	w.Step()
	if p.rotDeg == rotBefore {
		t.Fatal("expected rotation to resume")
	}
}

func TestTimeLimitEndsMatch(t *testing.T) {
	w := newTestWorld(t, testDoc())
	joinTeam(t, w, "p1", sim.TeamOne)
	startMatch(t, w, 0, 0.1)

	for i := 0; i < 10; i++ {
		w.Step()
	}
	snap := w.Snapshot()
	if snap.Match.Phase != sim.PhaseLobby {
		t.Fatal("expected match ended by time limit")
	}
	for _, p := range snap.Players {
		if p.Team != sim.TeamSpectator {
			t.Fatalf("expected %s back to spectator, got %q", p.ID, p.Team)
		}
	}
}

func TestScoreLimitEndsMatch(t *testing.T) {
	w := newTestWorld(t, testDoc())
	joinTeam(t, w, "p1", sim.TeamOne)
	startMatch(t, w, 2, 0)

	w.scoreForTeam(sim.TeamTwo)
	w.Step()
	if w.Snapshot().Match.Phase != sim.PhasePlaying {
		t.Fatal("expected match still running below the limit")
	}

	w.scoreForTeam(sim.TeamTwo)
	w.Step()
	snap := w.Snapshot()
	if snap.Match.Phase != sim.PhaseLobby {
		t.Fatal("expected match ended at the score limit")
	}
	if snap.Match.Team2Score != 2 {
		t.Fatalf("expected final score kept, got %d", snap.Match.Team2Score)
	}
}

func TestStartResetsScoresAndClock(t *testing.T) {
	w := newTestWorld(t, testDoc())
	joinTeam(t, w, "p1", sim.TeamOne)
	startMatch(t, w, 3, 0)
	w.scoreForTeam(sim.TeamOne)
	for i := 0; i < 10; i++ {
		w.Step()
	}

	mustApply(t, w, lobbyCmd("host", 100, sim.LobbyCommand{Action: sim.LobbyStop}))
	joinTeam(t, w, "p1", sim.TeamOne)
	startMatch(t, w, 3, 0)

	snap := w.Snapshot()
	if snap.Match.Team1Score != 0 || snap.Match.Team2Score != 0 {
		t.Fatalf("expected scores reset, got %d:%d", snap.Match.Team1Score, snap.Match.Team2Score)
	}
	if snap.Match.ClockSec != 0 {
		t.Fatalf("expected clock reset, got %d", snap.Match.ClockSec)
	}
}
