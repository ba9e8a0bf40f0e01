// Package source implements the fetch adapters for the supported
// issue-tracking systems. Each adapter pages its instance exhaustively and
// returns flat records; it never drops items or returns a partial batch on
// error.
package source

import (
	"crypto/md5" // #nosec G501 -- id derivation only, not security
	"encoding/hex"
	"fmt"
	"strconv"
)

// OrgID derives a stable local id for an instance root from its URL, so the
// root keeps its identity across runs and config renames.
func OrgID(url string) string {
	sum := md5.Sum([]byte(url)) // #nosec G401
	digest := hex.EncodeToString(sum[:])
	value, _ := strconv.ParseUint(digest[:6], 16, 64)
	return fmt.Sprintf("org_%d", value%1000000)
}
