package loader

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestVerifyIntegrity(t *testing.T) {
	assert := assert.New(t)
	data := []byte("window.Chart = function() {}")
	other := []byte("")
	sha256sum := sha256.Sum256(data)
	sha256Value := "sha256-" + base64.StdEncoding.EncodeToString(sha256sum[:])

	assert.NoError(verifyIntegrity("", data))
	assert.NoError(verifyIntegrity(Integrity(data), data))
	assert.NoError(verifyIntegrity(sha256Value, data))
	assert.NoError(verifyIntegrity(Integrity(data)+"?ct=application/javascript", data))
	// unknown algorithms are not enforced
	assert.NoError(verifyIntegrity("md5-AAAA", data))

	err := verifyIntegrity(Integrity(other), data)
	assert.Equal(ErrIntegrityMismatch, errors.Cause(err))

	// any digest of the strongest algorithm may match
	assert.NoError(verifyIntegrity(Integrity(other)+" "+Integrity(data), data))

	// the weaker algorithm is ignored when a stronger one is present
	err = verifyIntegrity(sha256Value+" "+Integrity(other), data)
	assert.Equal(ErrIntegrityMismatch, errors.Cause(err))
}
