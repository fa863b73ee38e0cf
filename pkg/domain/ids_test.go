package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "educa/pkg/domain-errors"
)

func TestParseID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non numeric", func(t *testing.T) {
		_, err := ParseID("abc")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects zero and negatives", func(t *testing.T) {
		for _, in := range []string{"0", "-4"} {
			_, err := ParseID(in)
			assert.Error(t, err, in)
		}
	})

	t.Run("accepts positive id", func(t *testing.T) {
		id, err := ParseID(" 42 ")
		require.NoError(t, err)
		assert.Equal(t, ID(42), id)
	})
}

func TestDateJSON(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2010-03-15"`)))
	assert.Equal(t, "2010-03-15", d.String())

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"2010-03-15"`, string(out))

	err = d.UnmarshalJSON([]byte(`"15/03/2010"`))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	var zero Date
	out, err = zero.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
