package upload

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"ai-mockup-studio/internal/synthesis"
)

const (
	// MaxSize is the largest accepted design upload.
	MaxSize = 15 * 1024 * 1024

	op = "upload"
)

// Asset is a validated design image.
type Asset struct {
	Data     []byte
	MimeType string
	Size     int
	// Preview is a data URL suitable for direct display.
	Preview string
}

// Image returns the asset in the form the synthesis client expects.
func (a Asset) Image() synthesis.Image {
	return synthesis.Image{Data: a.Data, MimeType: a.MimeType}
}

type candidate struct {
	MimeType string `validate:"required,oneof=image/png image/jpeg image/gif image/webp"`
	Size     int    `validate:"min=1,max=15728640"`
}

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate checks the upload by its content rather than the declared type.
// The declared type only names the file in error messages when the content
// is unrecognizable.
func (v *Validator) Validate(data []byte, declaredMIME string) (Asset, error) {
	if len(data) == 0 {
		return Asset{}, synthesis.Validationf(op, "file is empty")
	}

	mime := mimetype.Detect(data).String()
	if err := v.validate.Struct(candidate{MimeType: mime, Size: len(data)}); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Asset{}, synthesis.Validationf(op, "%v", err)
		}
		for _, fe := range verrs {
			if fe.Field() == "Size" {
				return Asset{}, synthesis.Validationf(op, "file is %d bytes, the limit is %d", len(data), MaxSize)
			}
		}
		shown := mime
		if declared := normalizeDeclared(declaredMIME); declared != "" && mime == "application/octet-stream" {
			shown = declared
		}
		return Asset{}, synthesis.Validationf(op, "unsupported file type %q, use PNG, JPEG, GIF or WEBP", shown)
	}

	return Asset{
		Data:     data,
		MimeType: mime,
		Size:     len(data),
		Preview:  "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}

func normalizeDeclared(declared string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if idx := strings.IndexByte(declared, ';'); idx >= 0 {
		declared = strings.TrimSpace(declared[:idx])
	}
	return declared
}
