package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/citygate/internal/common"
	"golang.org/x/crypto/argon2"
)

// Argon2idHasher stores hashes in the PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
type Argon2idHasher struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		KeyLen:  32,
		SaltLen: 16,
	}
}

func (h *Argon2idHasher) Hash(plain string) (string, error) {
	salt := common.GenerateRandByteArray(h.SaltLen)
	key := argon2.IDKey([]byte(plain), salt, h.Time, h.Memory, h.Threads, h.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2idHasher) Verify(plain, hashed string) bool {
	return Verify(plain, hashed)
}

func verifyArgon2id(plain, hashed string) bool {
	p, err := parseArgon2id(hashed)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(plain), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(key, p.key) == 1
}

// Stored parameters are bounded so that a crafted hash cannot make Verify
// allocate arbitrary memory.
const (
	maxArgon2Memory = 1 << 20 // KiB
	maxArgon2Time   = 16
	maxArgon2KeyLen = 1024
)

type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func parseArgon2id(encoded string) (*argon2Params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != AlgorithmArgon2id {
		return nil, fmt.Errorf("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, err
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	p := &argon2Params{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, err
	}
	if p.time == 0 || p.time > maxArgon2Time || p.threads == 0 {
		return nil, fmt.Errorf("invalid argon2 parameters")
	}
	if p.memory < 8*uint32(p.threads) || p.memory > maxArgon2Memory {
		return nil, fmt.Errorf("argon2 memory %d KiB out of range", p.memory)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, err
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, err
	}
	if len(p.key) == 0 || len(p.key) > maxArgon2KeyLen {
		return nil, fmt.Errorf("invalid argon2 key length %d", len(p.key))
	}
	return p, nil
}
