package types

import (
	"encoding/binary"
	"math/big"

	"github.com/leapstack-labs/leapdriver/pkg/core"
)

var (
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	mask64    = new(big.Int).SetUint64(^uint64(0))
)

// IsBigEndian reports whether order stores the most significant byte first.
func IsBigEndian(order binary.ByteOrder) bool {
	return order.Uint16([]byte{0, 1}) == 1
}

// DecodeInt128 reconstructs a signed 128-bit two's complement integer from
// 16 bytes laid out in the given byte order.
func DecodeInt128(order binary.ByteOrder, b []byte) *big.Int {
	var hi int64
	var lo uint64
	if IsBigEndian(order) {
		hi = int64(order.Uint64(b[0:8]))
		lo = order.Uint64(b[8:16])
	} else {
		lo = order.Uint64(b[0:8])
		hi = int64(order.Uint64(b[8:16]))
	}
	v := new(big.Int).Lsh(big.NewInt(hi), 64)
	return v.Add(v, new(big.Int).SetUint64(lo))
}

// EncodeInt128 writes v into the first 16 bytes of dst using the given byte
// order. Values outside the signed 128-bit range fail with TypeMismatch.
func EncodeInt128(order binary.ByteOrder, dst []byte, v *big.Int) error {
	if v.Cmp(minInt128) < 0 || v.Cmp(maxInt128) > 0 {
		return core.Errorf(core.KindTypeMismatch, "value %s overflows a 128-bit integer", v)
	}
	lo := new(big.Int).And(v, mask64).Uint64()
	hi := new(big.Int).Rsh(v, 64).Int64()
	if IsBigEndian(order) {
		order.PutUint64(dst[0:8], uint64(hi))
		order.PutUint64(dst[8:16], lo)
	} else {
		order.PutUint64(dst[0:8], lo)
		order.PutUint64(dst[8:16], uint64(hi))
	}
	return nil
}
