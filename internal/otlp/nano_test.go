package otlp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixNanoToTime(t *testing.T) {
	got, err := UnixNanoToTime("1000000000")
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1000).UTC(), got)
}

func TestUnixNanoToTimeTruncatesNotRounds(t *testing.T) {
	// 1,999,999 ns is 1.999999 ms and must truncate to 1 ms.
	got, err := UnixNanoToTime("1999999")
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1).UTC(), got)
}

func TestUnixNanoToTimeDurationBetween(t *testing.T) {
	// Span timestamps 50,000,000 ns apart must land exactly 50 ms apart
	// after truncation.
	start, err := UnixNanoToTime("1000000000000000")
	require.NoError(t, err)
	end, err := UnixNanoToTime("1000000050000000")
	require.NoError(t, err)
	assert.Equal(t, int64(50), end.UnixMilli()-start.UnixMilli())
}

func TestUnixNanoToTimeErrors(t *testing.T) {
	_, err := UnixNanoToTime("")
	assert.Error(t, err)

	_, err = UnixNanoToTime("not-a-number")
	assert.Error(t, err)
}

func TestOptionalUnixNano(t *testing.T) {
	got, err := OptionalUnixNano("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = OptionalUnixNano("1500000000")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.UnixMilli(1500).UTC(), *got)
}
