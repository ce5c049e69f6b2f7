package loader

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"hash"
	"strings"

	"github.com/pkg/errors"
)

// integrity algorithms ordered from weakest to strongest
var integrityAlgorithms = []struct {
	name string
	hash func() hash.Hash
}{
	{"sha256", sha256.New},
	{"sha384", sha512.New384},
	{"sha512", sha512.New},
}

type digest struct {
	strength int
	sum      []byte
}

// parseIntegrity parses a subresource integrity value.
// Tokens with unknown algorithms or bad encoding are ignored.
func parseIntegrity(value string) []digest {
	var res []digest
	for _, token := range strings.Fields(value) {
		// options after '?' are reserved and ignored
		if i := strings.IndexByte(token, '?'); i >= 0 {
			token = token[:i]
		}
		parts := strings.SplitN(token, "-", 2)
		if len(parts) != 2 {
			continue
		}
		for strength, alg := range integrityAlgorithms {
			if !strings.EqualFold(parts[0], alg.name) {
				continue
			}
			sum, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				break
			}
			res = append(res, digest{strength: strength, sum: sum})
		}
	}

	return res
}

// verifyIntegrity checks data against an integrity value.
// Only the strongest algorithm present is used; any matching digest of that
// algorithm passes. A value without usable digests is not enforced.
func verifyIntegrity(value string, data []byte) error {
	digests := parseIntegrity(value)
	if len(digests) == 0 {
		return nil
	}

	strongest := 0
	for _, d := range digests {
		if d.strength > strongest {
			strongest = d.strength
		}
	}

	h := integrityAlgorithms[strongest].hash()
	h.Write(data)
	sum := h.Sum(nil)
	for _, d := range digests {
		if d.strength == strongest && subtle.ConstantTimeCompare(d.sum, sum) == 1 {
			return nil
		}
	}

	return errors.Wrapf(ErrIntegrityMismatch, "no %s digest matches", integrityAlgorithms[strongest].name)
}

// Integrity returns the subresource integrity value of data using sha384
func Integrity(data []byte) string {
	sum := sha512.Sum384(data)
	return "sha384-" + base64.StdEncoding.EncodeToString(sum[:])
}
