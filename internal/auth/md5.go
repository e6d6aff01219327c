package auth

import (
	"crypto/md5" //nolint:gosec // PostgreSQL's MD5 auth format is a fixed, non-negotiable hash construction
	"encoding/hex"
)

// md5Password computes PostgreSQL's MD5 password hash:
// "md5" + hex(md5(hex(md5(password+user)) + salt))
func md5Password(user, password string, salt [4]byte) string {
	inner := md5.Sum([]byte(password + user))
	innerHex := hex.EncodeToString(inner[:])
	outer := md5.Sum(append([]byte(innerHex), salt[:]...))
	return "md5" + hex.EncodeToString(outer[:])
}
