// Package cid mints chunk identifiers for the Access Service.
//
// A CID is a UUIDv7 (time-sortable, collision-free without coordination)
// rendered as a 26-character lowercase, unpadded base32hex string — the
// concrete encoding behind the "globally unique opaque string" chunk
// identifier.
package cid

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// New mints a fresh CID from a new UUIDv7.
func New() string {
	id := uuid.Must(uuid.NewV7())
	return strings.ToLower(encoding.EncodeToString(id[:]))
}
