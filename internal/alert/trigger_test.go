package alert

import "testing"

func TestScenarioC(t *testing.T) {
	boundaries := []float64{9, 10}

	var tr Trigger
	if _, fired := tr.Check(10-1.0/60, boundaries); fired {
		t.Error("one minute before the boundary must not fire")
	}
	at, fired := tr.Check(10-0.5/60+0.0001, boundaries)
	if !fired || at != 10 {
		t.Fatalf("Check() = (%v, %v), want fire at 10", at, fired)
	}
	if last, ok := tr.LastFired(); !ok || last != 10 {
		t.Errorf("LastFired() = (%v, %v)", last, ok)
	}
}

func TestScenarioCApproximateHours(t *testing.T) {
	var tr Trigger
	if _, fired := tr.Check(9.9917, []float64{10}); !fired {
		t.Error("9.9917 is within 30 s of 10:00 and should fire")
	}
	var fresh Trigger
	if _, fired := fresh.Check(9.9833, []float64{10}); fired {
		t.Error("9.9833 is a minute early and should not fire")
	}
}

func TestFiresOncePerBoundaryAcrossTicks(t *testing.T) {
	var tr Trigger
	boundaries := []float64{10}

	fires := 0
	// Sample every second from 10:00:00 - 60 s to 10:00:00 + 60 s.
	for s := -60; s <= 60; s++ {
		if _, fired := tr.Check(10+float64(s)/3600, boundaries); fired {
			fires++
		}
	}
	if fires != 1 {
		t.Errorf("fires = %d, want 1", fires)
	}
}

func TestCloseBoundariesFireAtMostOnce(t *testing.T) {
	var tr Trigger
	// End of one meeting and start of the next 40 s apart.
	boundaries := []float64{10, 10 + 40.0/3600}

	fires := 0
	for s := -60; s <= 120; s++ {
		if _, fired := tr.Check(10+float64(s)/3600, boundaries); fired {
			fires++
		}
	}
	if fires != 1 {
		t.Errorf("fires = %d, want 1", fires)
	}
}

func TestDistinctBoundariesEachFire(t *testing.T) {
	var tr Trigger
	boundaries := []float64{9, 9.5, 11}

	var got []float64
	for s := 8 * 3600; s <= 12*3600; s++ {
		if at, fired := tr.Check(float64(s)/3600, boundaries); fired {
			got = append(got, at)
		}
	}
	if len(got) != 3 || got[0] != 9 || got[1] != 9.5 || got[2] != 11 {
		t.Errorf("fired at %v, want [9 9.5 11]", got)
	}
}

func TestCandidateFirstInOrder(t *testing.T) {
	cand, ok := Candidate(10, []float64{12, 10.001, 9.999})
	if !ok || cand != 10.001 {
		t.Errorf("Candidate() = (%v, %v), want first match 10.001", cand, ok)
	}
	if _, ok := Candidate(10, nil); ok {
		t.Error("no boundaries, no candidate")
	}
}

func TestZeroValueArmed(t *testing.T) {
	var tr Trigger
	if _, ok := tr.LastFired(); ok {
		t.Error("zero Trigger should have no fire recorded")
	}
	// A boundary at hour 0 must still fire the first time.
	if _, fired := tr.Check(0, []float64{0}); !fired {
		t.Error("first candidate should always fire")
	}
}
