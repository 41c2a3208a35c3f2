// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package mfs

import (
	"encoding/binary"
	"fmt"
)

// Volume Allocation Block Map entry markers. Any other value is the
// number of the next block in the chain.
const (
	alBkEmpty = 0
	alBkLast  = 1
	alBkDir   = 0xFFF
)

// Entry 1 of the expanded map is unused on disk; mark it recognizably.
const vabmUnused = 0x1337

// readVABM expands the 12-bit packed map that follows the MDB into
// one uint16 per allocation block. Entry 0 holds the block count and
// entries 2..NmAlBlks+1 are indexed directly by block number.
//
// Packing: each pair of entries (even n, odd n+1) occupies three bytes
// [hi8(even)] [lo4(even)|hi4(odd)] [lo8(odd)], so entry n starts at byte
// ((n-2)*3)/2 and takes bits 4-15 of the big-endian word there when n is
// even, bits 0-11 when n is odd.
func (v *Volume) readVABM() error {
	nm := int(v.mdb.NmAlBlks)
	packed := (nm*3 + 1) / 2
	span := mdbSize + packed
	blocks := (span + logicalBlockSize - 1) / logicalBlockSize
	buf := make([]byte, blocks*logicalBlockSize)
	if err := v.blkread(buf, int64(blocks), 2); err != nil {
		return fmt.Errorf("block map unreadable: %w", err)
	}
	base := buf[mdbSize:]

	vabm := make([]uint16, nm+2)
	vabm[0] = v.mdb.NmAlBlks
	vabm[1] = vabmUnused
	for n := 2; n < nm+2; n++ {
		word := binary.BigEndian.Uint16(base[(n-2)*3/2:])
		if n%2 == 1 {
			vabm[n] = word & 0xFFF
		} else {
			vabm[n] = word >> 4
		}
	}
	v.vabm = vabm
	return nil
}
