package heap

import "github.com/mazarinos/gcore/internal/bitfield"

// Flags selects allocation behavior, packed through the bitfield helper
// declaratively rather than a raw shift/mask constant — a single bool
// today, but a future flag only ever needs a new tagged field.
type Flags struct {
	Pinned   bool   `bitfield:",1"`
	Reserved uint32 `bitfield:",31"`
}

// PackFlags compacts f into the 32-bit word alloc_with_flags receives
// from runtime glue.
func PackFlags(f Flags) uint32 {
	packed, err := bitfield.Pack(f, &bitfield.Config{NumBits: 32})
	if err != nil {
		// Every field fits by construction (1 + 31 == 32 bits); a
		// mismatch here means the struct tags were edited without
		// updating NumBits, a programmer error, not a runtime one.
		panic(err)
	}
	return uint32(packed)
}

// UnpackFlags is PackFlags's inverse.
func UnpackFlags(packed uint32) Flags {
	var f Flags
	if err := bitfield.Unpack(uint64(packed), &f); err != nil {
		panic(err)
	}
	return f
}
