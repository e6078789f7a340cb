package flatmap

import "testing"

func TestEmplaceAndLookup(t *testing.T) {
    tbl := New[string, int](64)

    idx := tbl.AssignSlot(1)
    v := 42
    tbl.EmplaceAt(idx, "a", &v)
    tbl.MoveToFront(idx)

    gotIdx, found, _ := tbl.Lookup(1, "a")
    if !found || gotIdx != idx {
        t.Fatalf("Lookup after Emplace: found=%v idx=%v want idx=%v", found, gotIdx, idx)
    }
    if got := tbl.PeekValue(idx); got == nil || *got != 42 {
        t.Fatalf("PeekValue = %v, want 42", got)
    }
}

func TestGetLocklessMatchesWriterView(t *testing.T) {
    tbl := New[string, int](64)
    idx := tbl.AssignSlot(7)
    v := 100
    tbl.EmplaceAt(idx, "k", &v)
    tbl.MoveToFront(idx)

    vp, gotIdx, gen, ok := tbl.GetLockless(7, "k")
    if !ok {
        t.Fatal("GetLockless: want hit")
    }
    if *vp != 100 || gotIdx != idx {
        t.Fatalf("GetLockless = (%v, %v), want (100, %v)", *vp, gotIdx, idx)
    }
    if !tbl.IsValidGen(idx, gen) {
        t.Fatal("IsValidGen should hold for a gen just observed")
    }
}

func TestGetLocklessMiss(t *testing.T) {
    tbl := New[string, int](64)
    if _, _, _, ok := tbl.GetLockless(99, "missing"); ok {
        t.Fatal("GetLockless on empty table should miss")
    }
}

func TestMoveToFrontOrdersByRecency(t *testing.T) {
    tbl := New[int, int](64)
    var idxs [3]uint32
    for i := 0; i < 3; i++ {
        v := i
        idxs[i] = tbl.AssignSlot(uint64(i))
        tbl.EmplaceAt(idxs[i], i, &v)
        tbl.MoveToFront(idxs[i])
    }
    // Most recently emplaced (2) should be head; first emplaced (0) tail.
    if tbl.GetHead() != idxs[2] {
        t.Fatalf("head = %v, want %v", tbl.GetHead(), idxs[2])
    }
    if tbl.GetTail() != idxs[0] {
        t.Fatalf("tail = %v, want %v", tbl.GetTail(), idxs[0])
    }

    // Touching the tail moves it to the front.
    tbl.MoveToFront(idxs[0])
    if tbl.GetHead() != idxs[0] {
        t.Fatalf("after touch, head = %v, want %v", tbl.GetHead(), idxs[0])
    }
    if tbl.GetTail() != idxs[1] {
        t.Fatalf("after touch, tail = %v, want %v", tbl.GetTail(), idxs[1])
    }
}

func TestMoveToFrontIdempotentAtHead(t *testing.T) {
    tbl := New[int, int](64)
    v := 1
    idx := tbl.AssignSlot(1)
    tbl.EmplaceAt(idx, 1, &v)
    tbl.MoveToFront(idx)
    head, tail := tbl.GetHead(), tbl.GetTail()

    tbl.MoveToFront(idx) // already head — must be a no-op

    if tbl.GetHead() != head || tbl.GetTail() != tail {
        t.Fatal("MoveToFront on the current head mutated the list")
    }
}

func TestEraseIndexTombstonesAndDetaches(t *testing.T) {
    tbl := New[int, int](64)
    v1, v2 := 1, 2
    idx1 := tbl.AssignSlot(1)
    tbl.EmplaceAt(idx1, 1, &v1)
    tbl.MoveToFront(idx1)
    idx2 := tbl.AssignSlot(2)
    tbl.EmplaceAt(idx2, 2, &v2)
    tbl.MoveToFront(idx2)

    old := tbl.EraseIndex(idx1)
    if old == nil || *old != 1 {
        t.Fatalf("EraseIndex returned %v, want 1", old)
    }
    if _, found, _ := tbl.Lookup(1, 1); found {
        t.Fatal("erased key should no longer be found")
    }
    if tbl.Size() != 1 {
        t.Fatalf("Size = %d, want 1", tbl.Size())
    }
    // The erased slot (the old tail) must be unlinked from the LRU list.
    if tbl.GetHead() != idx2 || tbl.GetTail() != idx2 {
        t.Fatalf("after erase, head/tail = %v/%v, want %v/%v", tbl.GetHead(), tbl.GetTail(), idx2, idx2)
    }
    // The remaining key must still probe correctly past the tombstone.
    if _, found, _ := tbl.Lookup(2, 2); !found {
        t.Fatal("Lookup must skip tombstones")
    }
}

func TestUpdateSlotReturnsOldValue(t *testing.T) {
    tbl := New[int, int](64)
    v1 := 1
    idx := tbl.AssignSlot(1)
    tbl.EmplaceAt(idx, 1, &v1)
    v2 := 2
    old := tbl.UpdateSlot(idx, &v2)
    if old == nil || *old != 1 {
        t.Fatalf("UpdateSlot old = %v, want 1", old)
    }
    if got := tbl.PeekValue(idx); got == nil || *got != 2 {
        t.Fatalf("PeekValue after update = %v, want 2", got)
    }
}

func TestWalkVisitsInRecencyOrder(t *testing.T) {
    tbl := New[int, int](64)
    for i := 0; i < 4; i++ {
        v := i
        idx := tbl.AssignSlot(uint64(i))
        tbl.EmplaceAt(idx, i, &v)
        tbl.MoveToFront(idx)
    }
    var order []int
    tbl.Walk(func(k, v int) { order = append(order, k) })
    want := []int{3, 2, 1, 0}
    if len(order) != len(want) {
        t.Fatalf("Walk visited %d entries, want %d", len(order), len(want))
    }
    for i := range want {
        if order[i] != want[i] {
            t.Fatalf("Walk order = %v, want %v", order, want)
        }
    }
}

func TestNewPanicsOnNonPowerOfTwo(t *testing.T) {
    defer func() {
        if recover() == nil {
            t.Fatal("New(3) should panic")
        }
    }()
    New[int, int](3)
}
