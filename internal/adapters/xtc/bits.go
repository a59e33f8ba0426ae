package xtc

import "errors"

var errShortBuffer = errors.New("xtc: compressed coordinate buffer exhausted")

// magicInts are the bucket sizes used for the small-difference encoding of
// consecutive atoms.
var magicInts = [...]uint32{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 8, 10, 12, 16, 20, 25, 32, 40, 50, 64,
	80, 101, 128, 161, 203, 256, 322, 406, 512, 645, 812, 1024, 1290,
	1625, 2048, 2580, 3250, 4096, 5060, 6501, 8192, 10321, 13003,
	16384, 20642, 26007, 32768, 41285, 52015, 65536, 82570, 104031,
	131072, 165140, 208063, 262144, 330280, 416127, 524287, 660561,
	832255, 1048576, 1321122, 1664510, 2097152, 2642245, 3329021,
	4194304, 5284491, 6658042, 8388607, 10568983, 13316085, 16777216,
}

const firstIdx = 9

// bitReader pulls variable-width integers out of the packed coordinate buffer.
type bitReader struct {
	buf      []byte
	cnt      int
	lastBits uint
	lastByte uint32
}

func (b *bitReader) next() (uint32, error) {
	if b.cnt >= len(b.buf) {
		return 0, errShortBuffer
	}
	v := uint32(b.buf[b.cnt])
	b.cnt++
	return v, nil
}

// receiveBits returns the next nbits bits as an unsigned integer.
func (b *bitReader) receiveBits(nbits int) (int, error) {
	mask := uint32(1)<<uint(nbits) - 1
	var num uint32
	for nbits >= 8 {
		c, err := b.next()
		if err != nil {
			return 0, err
		}
		b.lastByte = b.lastByte<<8 | c
		num |= (b.lastByte >> b.lastBits) << uint(nbits-8)
		nbits -= 8
	}
	if nbits > 0 {
		if int(b.lastBits) < nbits {
			c, err := b.next()
			if err != nil {
				return 0, err
			}
			b.lastBits += 8
			b.lastByte = b.lastByte<<8 | c
		}
		b.lastBits -= uint(nbits)
		num |= (b.lastByte >> b.lastBits) & (uint32(1)<<uint(nbits) - 1)
	}
	return int(num & mask), nil
}

// receiveInts decodes three integers packed into nbits bits as a mixed-radix
// number with the given radices.
func (b *bitReader) receiveInts(nbits int, sizes [3]uint32, nums *[3]int) error {
	var bytes [32]uint32
	nbytes := 0
	for nbits > 8 {
		v, err := b.receiveBits(8)
		if err != nil {
			return err
		}
		bytes[nbytes] = uint32(v)
		nbytes++
		nbits -= 8
	}
	if nbits > 0 {
		v, err := b.receiveBits(nbits)
		if err != nil {
			return err
		}
		bytes[nbytes] = uint32(v)
		nbytes++
	}
	for i := 2; i > 0; i-- {
		var num uint32
		for j := nbytes - 1; j >= 0; j-- {
			num = num<<8 | bytes[j]
			p := num / sizes[i]
			bytes[j] = p
			num -= p * sizes[i]
		}
		nums[i] = int(num)
	}
	nums[0] = int(bytes[0] | bytes[1]<<8 | bytes[2]<<16 | bytes[3]<<24)
	return nil
}

// sizeOfInt returns the number of bits needed to store values in [0, size].
func sizeOfInt(size uint32) int {
	var num uint64 = 1
	bits := 0
	for uint64(size) >= num && bits < 32 {
		bits++
		num <<= 1
	}
	return bits
}

// sizeOfInts returns the number of bits needed to store a mixed-radix number
// with the given radices.
func sizeOfInts(sizes [3]uint32) int {
	var bytes [32]uint32
	bytes[0] = 1
	nbytes := 1
	for _, size := range sizes {
		var tmp uint32
		cnt := 0
		for ; cnt < nbytes; cnt++ {
			tmp = bytes[cnt]*size + tmp
			bytes[cnt] = tmp & 0xff
			tmp >>= 8
		}
		for tmp != 0 {
			bytes[cnt] = tmp & 0xff
			cnt++
			tmp >>= 8
		}
		nbytes = cnt
	}
	var num uint32 = 1
	nbytes--
	bits := 0
	for bytes[nbytes] >= num {
		bits++
		num *= 2
	}
	return bits + nbytes*8
}
