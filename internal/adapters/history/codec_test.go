package history

import (
	"database/sql"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullScore(t *testing.T) {
	assert.False(t, nullScore(math.Inf(-1)).Valid)
	assert.False(t, nullScore(math.NaN()).Valid)
	assert.Equal(t, sql.NullFloat64{Float64: -12.5, Valid: true}, nullScore(-12.5))

	assert.True(t, math.IsInf(scoreFromNull(sql.NullFloat64{}), -1))
	assert.Equal(t, -12.5, scoreFromNull(sql.NullFloat64{Float64: -12.5, Valid: true}))
}

func TestFeaturesEncoding(t *testing.T) {
	encoded, err := encodeFeatures(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", encoded)

	encoded, err = encodeFeatures([]string{"Suspicious domain: .tk", "Possible typo: 'recieve'"})
	require.NoError(t, err)
	decoded, err := decodeFeatures(encoded)
	require.NoError(t, err)
	assert.Equal(t, []string{"Suspicious domain: .tk", "Possible typo: 'recieve'"}, decoded)

	decoded, err = decodeFeatures("")
	require.NoError(t, err)
	assert.Empty(t, decoded)

	_, err = decodeFeatures("{not json")
	assert.Error(t, err)
}

func TestPrepareMySQLDSN(t *testing.T) {
	dsn, err := prepareMySQLDSN("user:secret@tcp(db.example.com:3306)/phish")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "user:secret@tcp(db.example.com:3306)/phish")

	_, err = prepareMySQLDSN("not a dsn")
	assert.Error(t, err)
}
