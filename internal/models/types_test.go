package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3e-7}
	b := EncodeVector(v)
	assert.Len(t, b, 16)

	got, err := DecodeVector(b)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestVectorScanNull(t *testing.T) {
	var v Vector
	require.NoError(t, v.Scan(nil))
	assert.Nil(t, v)

	val, err := Vector(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestStringListScan(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan(`["a","b"]`))
	assert.Equal(t, StringList{"a", "b"}, l)

	require.NoError(t, l.Scan([]byte("")))
	assert.Nil(t, l)

	assert.Error(t, l.Scan(42))
}

func TestMetadataScan(t *testing.T) {
	var m Metadata
	require.NoError(t, m.Scan(`{"filename":"a.pdf","chunk_index":2}`))
	assert.Equal(t, "a.pdf", m.String(MetaFilename))
	assert.Equal(t, float64(2), m[MetaChunkIndex])
	assert.Equal(t, "", m.String("missing"))

	val, err := Metadata(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", val)
}

func TestErrorTaxonomy(t *testing.T) {
	err := fmt.Errorf("chunk: %w", NewConfigurationError("overlap", "must be smaller than max_size"))
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "overlap", cfgErr.Field)

	driverErr := errors.New("no such table: staff")
	execErr := error(&ExecutionError{SQL: "SELECT * FROM staff", Err: driverErr})
	assert.True(t, errors.Is(execErr, ErrExecution))
	assert.True(t, errors.Is(execErr, driverErr))
}
