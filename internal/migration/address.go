package migration

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ValidAddress reports whether s is a well-formed destination address:
// exactly "0x" followed by 40 hex characters. common.IsHexAddress alone also
// accepts unprefixed strings, so the prefix is checked explicitly.
func ValidAddress(s string) bool {
	return len(s) == 42 && strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// ClaimKey builds the issuance serialization key for a claim. Addresses are
// lowercased so that requests differing only in address case map to the same
// claim.
func ClaimKey(account, ethAddress string) string {
	return account + "|" + strings.ToLower(ethAddress)
}
