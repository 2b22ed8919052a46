package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

type Params struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
}

var Default = Params{Memory: 64 * 1024, Time: 3, Parallelism: 1, KeyLen: 32}

// ErrMalformedHash: el PHC guardado no es argon2id v19.
var ErrMalformedHash = errors.New("password: malformed argon2id hash")

// Hash devuelve un PHC string: $argon2id$v=19$m=...,t=...,p=...$<saltB64>$<dkB64>
func Hash(p Params, plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("empty password")
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk := argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(dk),
	), nil
}

type decoded struct {
	params Params
	salt   []byte
	dk     []byte
}

// decode parte el PHC por '$'. Sscanf con %s no sirve acá porque consume
// hasta el próximo espacio, no hasta el '$'.
func decode(phc string) (*decoded, error) {
	parts := strings.Split(phc, "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, dk
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != "v=19" {
		return nil, ErrMalformedHash
	}
	var m, t uint32
	var p uint8
	if n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil || n != 3 || m == 0 || t == 0 || p == 0 {
		return nil, ErrMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, ErrMalformedHash
	}
	dk, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(dk) == 0 {
		return nil, ErrMalformedHash
	}
	return &decoded{
		params: Params{Memory: m, Time: t, Parallelism: p, KeyLen: uint32(len(dk))},
		salt:   salt,
		dk:     dk,
	}, nil
}

// Verify compara en tiempo constante. Un hash malformado nunca verifica.
func Verify(plain, phc string) bool {
	d, err := decode(phc)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(plain), d.salt, d.params.Time, d.params.Memory, d.params.Parallelism, d.params.KeyLen)
	return subtle.ConstantTimeCompare(key, d.dk) == 1
}

// NeedsRehash reporta si el hash fue generado con parámetros más débiles que p.
func NeedsRehash(phc string, p Params) bool {
	d, err := decode(phc)
	if err != nil {
		return true
	}
	return d.params.Memory < p.Memory || d.params.Time < p.Time || d.params.KeyLen < p.KeyLen
}
