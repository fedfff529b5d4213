package bridge

import (
	"errors"
	"testing"
	"time"
)

func TestReconnectRestoresChannel(t *testing.T) {
	first := &fakeTransport{reads: []transportRead{
		{line: identifyLine()},
		{err: errors.New("input/output error")},
	}}
	second := &fakeTransport{}
	opener := &fakeOpener{results: []openResult{
		{transport: first},
		{err: errors.New("port busy")}, // First reopen attempt fails
		{transport: second},
	}}
	session := newFakeSession()
	dialer := &fakeDialer{session: session}

	b, _ := New(testOptions(opener, dialer, &fakePorts{ports: []string{"/dev/ttyTEST0"}}))
	cancel, done := runBridge(t, b)
	defer cancel()

	stateTopic := "whac/dev-42/state"
	waitFor(t, time.Second, func() bool {
		statuses := session.statuses(stateTopic)
		return len(statuses) >= 2 && statuses[len(statuses)-1] == StatusOnline
	}, "online republish after reconnect")

	// The restored channel gets a bare identify write, not a handshake.
	if got := string(second.writtenBytes()); got != "I" {
		t.Errorf("restored channel received %q, want bare identify", got)
	}
	if first.closed == 0 {
		t.Error("broken channel never closed")
	}
	if session.closed != 0 {
		t.Error("broker session torn down during serial reconnect")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestReconnectBudgetExhausted(t *testing.T) {
	transport := &fakeTransport{reads: []transportRead{
		{line: identifyLine()},
		{err: errors.New("input/output error")},
	}}
	// Only the initial open succeeds; every reopen fails.
	opener := &fakeOpener{results: []openResult{{transport: transport}}}
	session := newFakeSession()
	dialer := &fakeDialer{session: session}

	opts := testOptions(opener, dialer, &fakePorts{ports: []string{"/dev/ttyTEST0"}})
	opts.ReconnectTimeout = 60 * time.Millisecond
	opts.ReconnectRetry = 10 * time.Millisecond

	b, _ := New(opts)
	_, done := runBridge(t, b)

	start := time.Now()
	err := <-done
	elapsed := time.Since(start)

	if !errors.Is(err, ErrReconnectTimeout) {
		t.Fatalf("Run() error = %v, want ErrReconnectTimeout", err)
	}
	// Gives up no earlier than the budget, within a small margin after.
	if elapsed < 60*time.Millisecond {
		t.Errorf("gave up after %v, before the budget", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("gave up after %v, far past the budget", elapsed)
	}

	statuses := session.statuses("whac/dev-42/state")
	if statuses[len(statuses)-1] != StatusSerialError {
		t.Errorf("final status = %q, want serial_error", statuses[len(statuses)-1])
	}
	if session.closed != 1 {
		t.Errorf("session closed %d times, want 1", session.closed)
	}
	if transport.closed != 1 {
		t.Errorf("transport closed %d times, want 1", transport.closed)
	}
}

func TestUnplugShortCircuit(t *testing.T) {
	transport := &fakeTransport{reads: []transportRead{
		{line: identifyLine()},
		{err: errors.New("input/output error")},
	}}
	opener := &fakeOpener{results: []openResult{{transport: transport}}}
	session := newFakeSession()
	dialer := &fakeDialer{session: session}

	// Port absent from enumeration: the device was physically removed.
	b, _ := New(testOptions(opener, dialer, &fakePorts{ports: []string{"/dev/ttyS0"}}))
	_, done := runBridge(t, b)

	err := <-done
	if !errors.Is(err, ErrDeviceRemoved) {
		t.Fatalf("Run() error = %v, want ErrDeviceRemoved", err)
	}

	// No reopen attempt beyond the initial open.
	if got := opener.openCalls(); got != 1 {
		t.Errorf("open calls = %d, want 1 (no reconnect retries)", got)
	}

	statuses := session.statuses("whac/dev-42/state")
	if statuses[len(statuses)-1] != StatusOffline {
		t.Errorf("final status = %q, want offline", statuses[len(statuses)-1])
	}
	// The handle to the vanished port is still released.
	if transport.closed != 1 {
		t.Errorf("transport closed %d times, want 1", transport.closed)
	}
}

func TestEnumerationFailureDoesNotShortCircuit(t *testing.T) {
	transport := &fakeTransport{reads: []transportRead{
		{line: identifyLine()},
		{err: errors.New("input/output error")},
	}}
	second := &fakeTransport{}
	opener := &fakeOpener{results: []openResult{
		{transport: transport},
		{transport: second},
	}}
	session := newFakeSession()
	dialer := &fakeDialer{session: session}

	// Listing itself fails; must be treated as "still present".
	ports := &fakePorts{err: errors.New("sysfs unavailable")}

	b, _ := New(testOptions(opener, dialer, ports))
	cancel, done := runBridge(t, b)
	defer cancel()

	waitFor(t, time.Second, func() bool {
		return opener.openCalls() >= 2
	}, "reconnect attempt despite enumeration failure")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
