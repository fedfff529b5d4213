package bridge

import (
	"errors"
	"testing"
)

// newOnlineBridge builds a bridge already wired to fakes, as if the
// handshake and broker dial had completed.
func newOnlineBridge(t *testing.T) (*Bridge, *fakeTransport, *fakeSession) {
	t.Helper()

	transport := &fakeTransport{}
	session := newFakeSession()
	opener := &fakeOpener{}
	dialer := &fakeDialer{session: session}

	b, err := New(testOptions(opener, dialer, &fakePorts{ports: []string{"/dev/ttyTEST0"}}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b.deviceID = "dev-42"
	b.topics = NewTopics("whac", "dev-42")
	b.session = session
	b.setTransport(transport)
	b.setState(StateOnline)
	return b, transport, session
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    byte
		wantErr bool
	}{
		{"identify", "I", CmdIdentify, false},
		{"pause", "P", CmdPause, false},
		{"reset", "R", CmdReset, false},
		{"start", "S", CmdStart, false},
		{"disconnect", "D", CmdDisconnect, false},
		{"probe", "H", CmdProbe, false},
		{"level low", "1", '1', false},
		{"level high", "8", '8', false},
		{"trailing newline", "S\n", CmdStart, false},
		{"surrounding space", " P ", CmdPause, false},
		{"level zero", "0", 0, true},
		{"level nine", "9", 0, true},
		{"lowercase", "s", 0, true},
		{"unknown letter", "X", 0, true},
		{"multi byte", "SS", 0, true},
		{"empty", "", 0, true},
		{"whitespace only", "  \n", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCommand) {
					t.Errorf("ParseCommand(%q) error = %v, want ErrInvalidCommand", tt.payload, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand(%q) error = %v", tt.payload, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %q, want %q", tt.payload, got, tt.want)
			}
		})
	}
}

func TestHandleCommandForwardsToDevice(t *testing.T) {
	b, transport, _ := newOnlineBridge(t)

	if err := b.handleCommand("whac/dev-42/commands", []byte("S")); err != nil {
		t.Fatalf("handleCommand() error = %v", err)
	}
	if got := string(transport.writtenBytes()); got != "S" {
		t.Errorf("written = %q, want S", got)
	}
}

func TestHandleCommandRejectsUnknownBytes(t *testing.T) {
	b, transport, _ := newOnlineBridge(t)

	// Must never crash the callback; invalid commands are swallowed.
	for _, payload := range []string{"X", "0", "9", "pause", ""} {
		if err := b.handleCommand("whac/all/commands", []byte(payload)); err != nil {
			t.Errorf("handleCommand(%q) error = %v, want nil", payload, err)
		}
	}
	if got := len(transport.writtenBytes()); got != 0 {
		t.Errorf("%d bytes reached the transport for invalid commands, want 0", got)
	}
	if b.paused {
		t.Error("pause flag changed by invalid commands")
	}
}

func TestPauseTogglesFlagPerSuccessfulWrite(t *testing.T) {
	b, transport, _ := newOnlineBridge(t)

	if err := b.handleCommand("whac/dev-42/commands", []byte("P")); err != nil {
		t.Fatalf("handleCommand() error = %v", err)
	}
	if !b.paused {
		t.Fatal("pause flag not set after first pause")
	}

	if err := b.handleCommand("whac/dev-42/commands", []byte("P")); err != nil {
		t.Fatalf("handleCommand() error = %v", err)
	}
	if b.paused {
		t.Fatal("pause flag not cleared after second pause")
	}

	// A failed write must not toggle.
	transport.writeErr = errors.New("broken pipe")
	if err := b.handleCommand("whac/dev-42/commands", []byte("P")); err != nil {
		t.Fatalf("handleCommand() error = %v", err)
	}
	if b.paused {
		t.Error("pause flag toggled despite write failure")
	}
}

func TestProbeAnswersWithoutTouchingDevice(t *testing.T) {
	b, transport, session := newOnlineBridge(t)

	if err := b.handleCommand("whac/dev-42/commands", []byte("H")); err != nil {
		t.Fatalf("handleCommand() error = %v", err)
	}

	if got := len(transport.writtenBytes()); got != 0 {
		t.Errorf("%d bytes reached the transport for the probe, want 0", got)
	}
	statuses := session.statuses("whac/dev-42/state")
	if len(statuses) != 1 || statuses[0] != StatusOnline {
		t.Errorf("statuses = %v, want one online publish", statuses)
	}
}

func TestProbeReportsReconnectingAsSerialError(t *testing.T) {
	b, _, session := newOnlineBridge(t)
	b.setState(StateReconnecting)

	if err := b.handleCommand("whac/dev-42/commands", []byte("H")); err != nil {
		t.Fatalf("handleCommand() error = %v", err)
	}
	statuses := session.statuses("whac/dev-42/state")
	if len(statuses) != 1 || statuses[0] != StatusSerialError {
		t.Errorf("statuses = %v, want one serial_error publish", statuses)
	}
}

func TestCommandWriteFailureIsNonFatal(t *testing.T) {
	b, transport, _ := newOnlineBridge(t)
	transport.writeErr = errors.New("device gone")

	if err := b.handleCommand("whac/dev-42/commands", []byte("R")); err != nil {
		t.Errorf("handleCommand() error = %v, want nil on write failure", err)
	}
}
