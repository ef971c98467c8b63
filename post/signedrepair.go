package post

// RepairSigned reinterprets every value in col as a two's-complement signed
// integer at the given bit width (2, 4, or 8 bytes), for columns whose
// definition base type is signed but whose raw bytes arrived unpacked as
// unsigned (§4.5 phase 2).
//
// In this decoder, fitproto.decodeField already decodes each field using
// its definition's declared signedness, so this phase is a no-op in normal
// operation; it is kept, and exercised directly by tests, to satisfy the
// idempotency invariant (§8 property 7) for any column a caller marks via
// post.SignRepairField. pc may be nil.
func RepairSigned(col map[uint32]any, width int, pc *pacer) {
	for k, v := range col {
		pc.tick()
		switch n := v.(type) {
		case uint64:
			col[k] = reinterpretSigned(n, width)
		case uint32:
			col[k] = reinterpretSigned(uint64(n), width)
		case int64:
			col[k] = reinterpretSigned(uint64(n)&widthMask(width), width)
		}
	}
}

func widthMask(width int) uint64 {
	switch width {
	case 2:
		return 0xFFFF
	case 4:
		return 0xFFFFFFFF
	default:
		return 0xFFFFFFFFFFFFFFFF
	}
}

func reinterpretSigned(u uint64, width int) int64 {
	switch width {
	case 2:
		return int64(int16(uint16(u)))
	case 4:
		return int64(int32(uint32(u)))
	default:
		return int64(u)
	}
}
