package epoch

import "testing"

func TestEnterLeaveClearsSlot(t *testing.T) {
    m := New(4)
    g := m.Enter(0)
    if g.Epoch() == 0 {
        t.Fatal("Epoch() should be nonzero while entered")
    }
    g.Leave()
    if m.MinActive() != m.Current() {
        t.Fatalf("MinActive() = %d after Leave, want Current() = %d", m.MinActive(), m.Current())
    }
}

func TestMinActiveTracksOldestReader(t *testing.T) {
    m := New(4)
    g0 := m.Enter(0)
    m.Bump()
    g1 := m.Enter(1)
    m.Bump()

    if got := m.MinActive(); got != g0.Epoch() {
        t.Fatalf("MinActive() = %d, want oldest reader's epoch %d", got, g0.Epoch())
    }
    g0.Leave()
    if got := m.MinActive(); got != g1.Epoch() {
        t.Fatalf("MinActive() after g0.Leave = %d, want %d", got, g1.Epoch())
    }
    g1.Leave()
    if got := m.MinActive(); got != m.Current() {
        t.Fatalf("MinActive() with no active readers = %d, want Current() = %d", got, m.Current())
    }
}

func TestBumpAdvancesGlobal(t *testing.T) {
    m := New(1)
    start := m.Current()
    next := m.Bump()
    if next != start+1 {
        t.Fatalf("Bump() = %d, want %d", next, start+1)
    }
}

func TestEnterOutOfRangePanics(t *testing.T) {
    m := New(2)
    defer func() {
        if recover() == nil {
            t.Fatal("Enter(5) should panic for maxThreads=2")
        }
    }()
    m.Enter(5)
}
