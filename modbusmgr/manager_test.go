package modbusmgr

import (
	"context"
	"testing"

	"github.com/hartman-ems/battery-ems/codec"
)

func TestDummyClientReadSentinel(t *testing.T) {
	m := NewManager([]ClientEndpoint{
		{Name: "battery", Host: "test", Port: 502},
	}, nil)

	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer m.Close()

	got, err := m.ReadOne(context.Background(), "battery", 30775, codec.S32, 3, codec.FIX0)
	if err != nil {
		t.Fatalf("ReadOne: %v", err)
	}
	if got.(int64) != dummyReadValue {
		t.Errorf("got %v, want %d", got, dummyReadValue)
	}
}

func TestDummyClientWriteAccepted(t *testing.T) {
	m := NewManager([]ClientEndpoint{
		{Name: "battery", Host: "debug", Port: 502},
	}, nil)
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer m.Close()

	if err := m.WriteOne(context.Background(), "battery", 40149, []uint16{0, 1000}, 3); err != nil {
		t.Errorf("WriteOne on dummy client should succeed, got %v", err)
	}
}

func TestIsDummyCaseInsensitive(t *testing.T) {
	for _, host := range []string{"test", "TEST", "Debug", "none", "NONE"} {
		ep := ClientEndpoint{Host: host}
		if !ep.IsDummy() {
			t.Errorf("IsDummy(%q) = false, want true", host)
		}
	}
	if (ClientEndpoint{Host: "192.168.1.50"}).IsDummy() {
		t.Errorf("IsDummy should be false for a real host")
	}
}

func TestReadAllAggregatesAllDummyClients(t *testing.T) {
	m := NewManager([]ClientEndpoint{
		{Name: "inverter1", Host: "test"},
		{Name: "inverter2", Host: "test"},
	}, nil)
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer m.Close()

	got, err := m.ReadAll(context.Background(), 30775, codec.S32, 3, codec.FIX0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	for name, v := range got {
		if v.(int64) != dummyReadValue {
			t.Errorf("%s: got %v, want %d", name, v, dummyReadValue)
		}
	}
}

func TestManagerClosedRejectsFurtherUse(t *testing.T) {
	m := NewManager([]ClientEndpoint{{Name: "battery", Host: "test"}}, nil)
	if err := m.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close is idempotent.
	if err := m.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	if _, err := m.ReadOne(context.Background(), "battery", 30775, codec.S32, 3, nil); err == nil {
		t.Errorf("ReadOne after Close should fail")
	}
}

func TestRegisterKindByLeadingDigit(t *testing.T) {
	if !registerKind(40149) {
		t.Errorf("40149 should be a holding register")
	}
	if registerKind(30775) {
		t.Errorf("30775 should be an input register")
	}
}

func TestRegisterKindPanicsOnBadAddress(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for an address with no valid leading digit")
		}
	}()
	registerKind(1)
}
