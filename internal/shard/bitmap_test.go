package shard

import "testing"

func TestBitmapSetAndSwap(t *testing.T) {
    var b bitmap
    b.set(2)
    b.set(5)
    word := b.swap(0)
    if !word.isSet(2) || !word.isSet(5) {
        t.Fatalf("swap result missing set bits: %b", word)
    }
    if word.isSet(0) || word.isSet(63) {
        t.Fatalf("swap result has unexpected bits set: %b", word)
    }
    if after := b.swap(0); after != 0 {
        t.Fatalf("bitmap should be clear after swap(0), got %b", after)
    }
}
