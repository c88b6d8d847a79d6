package denylist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Set is a static set of block or transaction hashes that are skipped
// permanently, e.g. because the node can never return their receipts.
type Set struct {
	hashes map[common.Hash]struct{}
}

// Parse converts hex hash strings into a Set. Empty entries are ignored.
func Parse(inputs []string) (Set, error) {
	set := Set{hashes: make(map[common.Hash]struct{}, len(inputs))}
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return Set{}, fmt.Errorf("invalid hash: %s", input)
		}
		if len(data) != common.HashLength {
			return Set{}, fmt.Errorf("invalid hash length: %s", input)
		}
		set.hashes[common.BytesToHash(data)] = struct{}{}
	}
	return set, nil
}

// MustParse is Parse for static lists known to be valid.
func MustParse(inputs ...string) Set {
	set, err := Parse(inputs)
	if err != nil {
		panic(err)
	}
	return set
}

// Contains reports whether hash is in the set. Case is ignored.
func (s Set) Contains(hash string) bool {
	if len(s.hashes) == 0 {
		return false
	}
	_, ok := s.hashes[common.HexToHash(hash)]
	return ok
}

// Len returns the number of hashes.
func (s Set) Len() int {
	return len(s.hashes)
}

// Strings returns the hashes in sorted hex form.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s.hashes))
	for hash := range s.hashes {
		out = append(out, hash.Hex())
	}
	sort.Strings(out)
	return out
}
