package sniffer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectHead(t *testing.T) {
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00}
	webp := append([]byte("RIFF"), append([]byte{0, 0, 0, 0}, []byte("WEBPVP8 ")...)...)

	r, err := DetectHead(jpeg)
	require.NoError(t, err)
	assert.Equal(t, TypeJPEG, r.Type)
	assert.Equal(t, "image/jpeg", r.MIME)

	r, err = DetectHead(png)
	require.NoError(t, err)
	assert.Equal(t, TypePNG, r.Type)

	r, err = DetectHead(webp)
	require.NoError(t, err)
	assert.Equal(t, TypeWEBP, r.Type)
}

func TestDetectHeadRejectsUnknown(t *testing.T) {
	_, err := DetectHead([]byte("GIF89a...."))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = DetectHead(nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDetectReturnsHead(t *testing.T) {
	payload := append([]byte{0xff, 0xd8, 0xff, 0xe0}, bytes.Repeat([]byte{0x01}, 600)...)

	result, head, err := Detect(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, TypeJPEG, result.Type)
	assert.Len(t, head, 512)
	assert.Equal(t, payload[:512], head)
}
