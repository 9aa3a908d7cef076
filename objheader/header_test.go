package objheader

import (
	"testing"
	"unsafe"
)

func alignedBuf(n int) uintptr {
	buf := make([]uint64, n/8+1)
	return uintptr(unsafe.Pointer(&buf[0]))
}

func TestMarkUnmarkIdempotent(t *testing.T) {
	obj := alignedBuf(32)
	WriteHeader(obj, 0x1000) // aligned, low bit clear

	if IsMarked(obj) {
		t.Fatal("fresh header should be unmarked")
	}
	Mark(obj)
	Mark(obj) // idempotent
	if !IsMarked(obj) {
		t.Fatal("expected marked after Mark")
	}
	if DescriptorOf(obj) != 0x1000 {
		t.Fatalf("DescriptorOf should mask the mark bit, got 0x%x", DescriptorOf(obj))
	}
	Unmark(obj)
	if IsMarked(obj) {
		t.Fatal("expected unmarked after Unmark")
	}
}

func TestElementCountRoundTrip(t *testing.T) {
	obj := alignedBuf(32)
	WriteElementCount(obj, 7)
	if got := ElementCount(obj); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestFreeBlockRoundTrip(t *testing.T) {
	SetFreeSentinel(0xDEADBEE1)
	obj := alignedBuf(32)
	FormatFreeBlock(obj, 32, 0xCAFE)

	if !IsFreeBlock(obj) {
		t.Fatal("expected IsFreeBlock true after FormatFreeBlock")
	}
	if FreeBlockSize(obj) != 32 {
		t.Fatalf("got size %d, want 32", FreeBlockSize(obj))
	}
	if FreeBlockNext(obj) != 0xCAFE {
		t.Fatalf("got next 0x%x, want 0xCAFE", FreeBlockNext(obj))
	}
	SetFreeBlockNext(obj, 0)
	if FreeBlockNext(obj) != 0 {
		t.Fatal("expected next cleared")
	}
}

func TestMinObjectSizeFitsFreeBlock(t *testing.T) {
	if MinObjectSize < int(FreeBlockHeaderSize) {
		t.Fatalf("MinObjectSize %d must be >= FreeBlockHeaderSize %d", MinObjectSize, FreeBlockHeaderSize)
	}
}
