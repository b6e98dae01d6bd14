package upload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-mockup-studio/internal/synthesis"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00")
)

func TestValidateAcceptsSupportedImages(t *testing.T) {
	v := NewValidator()

	for name, tc := range map[string]struct {
		data []byte
		mime string
	}{
		"png":  {pngHeader, "image/png"},
		"jpeg": {jpegHeader, "image/jpeg"},
		"gif":  {gifHeader, "image/gif"},
	} {
		t.Run(name, func(t *testing.T) {
			asset, err := v.Validate(tc.data, "application/octet-stream")
			require.NoError(t, err)
			assert.Equal(t, tc.mime, asset.MimeType)
			assert.Equal(t, len(tc.data), asset.Size)
			assert.True(t, strings.HasPrefix(asset.Preview, "data:"+tc.mime+";base64,"))
			assert.Equal(t, tc.mime, asset.Image().MimeType)
		})
	}
}

func TestValidateRejectsByContent(t *testing.T) {
	v := NewValidator()

	_, err := v.Validate([]byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"), "image/png")
	require.ErrorIs(t, err, synthesis.ErrValidation)
	assert.Contains(t, err.Error(), "application/pdf")
}

func TestValidateRejectsEmpty(t *testing.T) {
	_, err := NewValidator().Validate(nil, "image/png")
	require.ErrorIs(t, err, synthesis.ErrValidation)
	assert.Contains(t, err.Error(), "empty")
}

func TestValidateRejectsOversized(t *testing.T) {
	data := make([]byte, MaxSize+1)
	copy(data, pngHeader)

	_, err := NewValidator().Validate(data, "image/png")
	require.ErrorIs(t, err, synthesis.ErrValidation)
	assert.Contains(t, err.Error(), "limit")
}

func TestValidateAcceptsExactLimit(t *testing.T) {
	data := make([]byte, MaxSize)
	copy(data, pngHeader)

	asset, err := NewValidator().Validate(data, "")
	require.NoError(t, err)
	assert.Equal(t, MaxSize, asset.Size)
}
