package board

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// session instance id. ulids are ordered by create time, which keeps
// interleaved log lines from concurrent sessions sortable.
type Id [16]byte

func NewId() Id {
	return Id(ulid.MustNew(ulid.Now(), rand.Reader))
}

func (self Id) String() string {
	return ulid.ULID(self).String()
}
