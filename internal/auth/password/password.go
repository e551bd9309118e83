// Package password hashes local account passwords with Argon2id.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

const (
	MinLength = 8
	MaxLength = 128

	saltLength = 16
	keyLength  = 32
)

var (
	ErrTooShort = errors.New("password too short")
	ErrTooLong  = errors.New("password too long")
)

// params are the Argon2id cost settings encoded into each hash.
type params struct {
	memory  uint32
	time    uint32
	threads uint8
}

// current is what new hashes use. Hashes with other settings still verify and
// are reported by NeedsRehash.
var current = params{memory: 64 * 1024, time: 1, threads: 4}

// Validate applies the length policy. Length counts runes, so accented names
// and passphrases are not penalised.
func Validate(pw string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(pw))
	switch {
	case n < MinLength:
		return ErrTooShort
	case n > MaxLength:
		return ErrTooLong
	}
	return nil
}

// Hash encodes pw in the PHC string format.
func Hash(pw string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := current.derive(pw, salt, keyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, current.memory, current.time, current.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether pw matches encoded. Malformed hashes never match.
func Verify(pw, encoded string) bool {
	p, salt, key, err := decode(encoded)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, p.derive(pw, salt, uint32(len(key)))) == 1
}

// NeedsRehash reports whether encoded was produced with settings other than
// the current ones. Login upgrades such hashes in place.
func NeedsRehash(encoded string) bool {
	p, _, key, err := decode(encoded)
	return err != nil || p != current || len(key) != keyLength
}

func (p params) derive(pw string, salt []byte, length uint32) []byte {
	return argon2.IDKey([]byte(pw), salt, p.time, p.memory, p.threads, length)
}

var errMalformed = errors.New("malformed argon2id hash")

func decode(encoded string) (params, []byte, []byte, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params{}, nil, nil, errMalformed
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params{}, nil, nil, errMalformed
	}

	var p params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return params{}, nil, nil, errMalformed
	}
	if p.memory == 0 || p.time == 0 || p.threads == 0 {
		return params{}, nil, nil, errMalformed
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return params{}, nil, nil, errMalformed
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params{}, nil, nil, errMalformed
	}
	return p, salt, key, nil
}
