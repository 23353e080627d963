package domain

import "strconv"

type IdentityType string

const (
	IdentityUser  IdentityType = "user"
	IdentityShare IdentityType = "share"
)

// Identity is the resolved viewing principal: an authenticated user or a
// share link. Subject is the row id of whichever one it is; Label is what
// gets burned into watermarks and attributed in audit rows (user email or
// share code).
type Identity struct {
	Subject uint
	Type    IdentityType
	Label   string
}

func (i Identity) SubjectString() string {
	return strconv.FormatUint(uint64(i.Subject), 10)
}
