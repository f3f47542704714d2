package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameMulawExactMultiple(t *testing.T) {
	data := bytes.Repeat([]byte{0xFF}, SliceBytes*3)
	frames := FrameMulaw(data)
	require.Len(t, frames, 3)
	for _, f := range frames {
		assert.Len(t, f, SliceBytes)
	}
	assert.Equal(t, data, joinFrames(frames))
}

func TestFrameMulawResidue(t *testing.T) {
	data := bytes.Repeat([]byte{0x7E}, SliceBytes*2+37)
	frames := FrameMulaw(data)
	require.Len(t, frames, 3)
	assert.Len(t, frames[0], SliceBytes)
	assert.Len(t, frames[1], SliceBytes)
	assert.Len(t, frames[2], 37)
	assert.Equal(t, data, joinFrames(frames))
}

func TestFrameMulawEmpty(t *testing.T) {
	assert.Nil(t, FrameMulaw(nil))
}

func TestEncodeDecodeRoundTripSilence(t *testing.T) {
	mu := EncodeSample(0)
	pcm := DecodeByte(mu)
	assert.InDelta(t, 0, pcm, 8)
}

func TestDownsample2to1(t *testing.T) {
	in := []int16{1, 2, 3, 4, 5, 6}
	out := Downsample2to1PCM16(in)
	assert.Equal(t, []int16{1, 3, 5}, out)
}

func joinFrames(frames [][]byte) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}
