package slb

import "github.com/dchest/siphash"

// hashKey0/hashKey1 form a fixed siphash key, generated once and reused
// for the lifetime of the process. The hash only needs to be stable
// within a single run (spec: different runs need not agree), so a
// baked-in key is sufficient -- there's no need to seed it randomly.
const (
	hashKey0 = 0x9ae16a3b2f90404f
	hashKey1 = 0xc2b2ae3d27d4eb4f
)

// HashKey extracts the leading key of a line -- everything up to the
// first ASCII space or newline -- and returns a stable 64-bit hash of
// it. An empty key (line starts with a space, or the line is empty
// aside from its terminator) is permitted and simply hashes the empty
// byte string.
func HashKey(line []byte) uint64 {
	end := len(line)
	for i, b := range line {
		if b == ' ' || b == '\n' {
			end = i
			break
		}
	}
	return siphash.Hash(hashKey0, hashKey1, line[:end])
}

// PartitionIndex maps a line to one of N partitions, N > 0.
//
// TODO: a sort-like -k/--key flag to select a different field or treat
// the key numerically would change this signature; not requested yet.
func PartitionIndex(line []byte, n int) int {
	return int(HashKey(line) % uint64(n))
}
