// Package credentials hashes and checks user passwords.
//
// Hashes are argon2id encoded in PHC string form:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
//
// so parameters can change without invalidating stored hashes.
package credentials

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"github.com/dmitrijs2005/blindauth/internal/cryptox"
	"golang.org/x/crypto/argon2"
)

const algorithmID = "argon2id"

// Params are the argon2id cost parameters.
type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultParams = Params{
	Memory:      64 * 1024,
	Time:        1,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// Argon2Verifier hashes passwords after checking them against the policy.
type Argon2Verifier struct {
	params Params
}

// kdf returns the derivation cost for p producing keyLen bytes.
func (p Params) kdf(keyLen uint32) cryptox.KDFParams {
	return cryptox.KDFParams{Time: p.Time, Memory: p.Memory, Threads: p.Parallelism, KeyLen: keyLen}
}

func NewArgon2Verifier(p Params) *Argon2Verifier {
	return &Argon2Verifier{params: p}
}

// Hash validates password against the policy and returns its PHC hash.
// Policy violations are reported as common.ErrWeakCredential.
func (a *Argon2Verifier) Hash(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", fmt.Errorf("%w: %s", common.ErrWeakCredential, err.Error())
	}

	salt, err := cryptox.GenerateRandByteArray(int(a.params.SaltLength))
	if err != nil {
		return "", err
	}

	key := cryptox.DeriveKey([]byte(password), salt, a.params.kdf(a.params.KeyLength))
	defer cryptox.WipeByteArray(key)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		a.params.Memory, a.params.Time, a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. Malformed hashes never match.
func (a *Argon2Verifier) Verify(encoded, password string) bool {
	p, salt, want, err := decodeHash(encoded)
	if err != nil {
		return false
	}
	got := cryptox.DeriveKey([]byte(password), salt, p.kdf(uint32(len(want))))
	defer cryptox.WipeByteArray(got)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func decodeHash(encoded string) (Params, []byte, []byte, error) {
	var p Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return p, nil, nil, errors.New("invalid hash format")
	}

	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return p, nil, nil, errors.New("unsupported argon2 version")
	}

	var par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &par); err != nil {
		return p, nil, nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if p.Memory == 0 || p.Time == 0 || par == 0 || par > 255 {
		return p, nil, nil, errors.New("invalid parameters")
	}
	p.Parallelism = uint8(par)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, errors.New("invalid salt encoding")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errors.New("invalid hash encoding")
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))

	return p, salt, key, nil
}
