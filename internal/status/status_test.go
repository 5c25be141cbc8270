package status

import "testing"

func TestIsActive(t *testing.T) {
	activeStatuses := []Status{Pending, Scheduling, Initializing, Running, Failing, Paused, ModeratorPaused}
	for _, s := range activeStatuses {
		if !IsActive(s) {
			t.Errorf("IsActive(%s) = false, want true", s)
		}
	}

	terminalStatuses := []Status{Completed, Stopped, Rejected, Failed, Terminated}
	for _, s := range terminalStatuses {
		if IsActive(s) {
			t.Errorf("IsActive(%s) = true, want false", s)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid(Running) {
		t.Error("IsValid(Running) = false, want true")
	}
	if IsValid(Status("bogus")) {
		t.Error("IsValid(bogus) = true, want false")
	}
}

func TestResultingStatus(t *testing.T) {
	cases := map[Command]Status{
		CmdStop:            Stopped,
		CmdPause:           Paused,
		CmdResume:          Running,
		CmdModeratorPaused: ModeratorPaused,
	}
	for cmd, want := range cases {
		got, ok := ResultingStatus(cmd)
		if !ok || got != want {
			t.Errorf("ResultingStatus(%s) = (%s, %v), want (%s, true)", cmd, got, ok, want)
		}
	}

	if _, ok := ResultingStatus(CmdRestart); ok {
		t.Error("ResultingStatus(restart) should not set a status directly")
	}
}

func TestClusterMessageFor(t *testing.T) {
	msg, slicerOnly, err := ClusterMessageFor(CmdPause)
	if err != nil || msg != MsgJobPause || !slicerOnly {
		t.Errorf("ClusterMessageFor(pause) = (%s, %v, %v)", msg, slicerOnly, err)
	}

	msg, slicerOnly, err = ClusterMessageFor(CmdStop)
	if err != nil || msg != MsgJobStop || slicerOnly {
		t.Errorf("ClusterMessageFor(stop) = (%s, %v, %v)", msg, slicerOnly, err)
	}

	if _, _, err := ClusterMessageFor(Command("bogus")); err == nil {
		t.Error("ClusterMessageFor(bogus) should fail")
	}
}

func TestIsKnownCommand(t *testing.T) {
	for _, c := range []Command{CmdStop, CmdPause, CmdResume, CmdModeratorPaused, CmdRestart, CmdTerminated} {
		if !IsKnownCommand(c) {
			t.Errorf("IsKnownCommand(%s) = false, want true", c)
		}
	}
	if IsKnownCommand(Command("nope")) {
		t.Error("IsKnownCommand(nope) = true, want false")
	}
}
