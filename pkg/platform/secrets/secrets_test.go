package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "educa/pkg/domain-errors"
)

func TestGenerateCredential(t *testing.T) {
	a, err := GenerateCredential()
	require.NoError(t, err)
	b, err := GenerateCredential()
	require.NoError(t, err)

	assert.Len(t, a, 11)
	assert.NotEqual(t, a, b)
}

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("s3nha-forte")
	require.NoError(t, err)
	assert.NotEqual(t, "s3nha-forte", hash)

	require.NoError(t, Verify("s3nha-forte", hash))

	err = Verify("errada", hash)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestHashRejectsEmpty(t *testing.T) {
	_, err := Hash("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
