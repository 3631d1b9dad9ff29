package generation

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/gabriel-vasile/mimetype"
)

// decodeReferenceImages turns data URLs or bare base64 strings into image bytes.
// Empty entries are skipped.
func decodeReferenceImages(raw []string, max int) ([]domain.ReferenceImage, error) {
	images := make([]domain.ReferenceImage, 0, len(raw))
	for i, entry := range raw {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if len(images) == max {
			return nil, fmt.Errorf("%w: at most %d reference images are allowed", domain.ErrInvalidInput, max)
		}

		image, err := decodeReferenceImage(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: reference image %d: %v", domain.ErrInvalidInput, i, err)
		}
		images = append(images, image)
	}
	return images, nil
}

func decodeReferenceImage(entry string) (domain.ReferenceImage, error) {
	declared := ""
	encoded := entry

	if rest, ok := strings.CutPrefix(entry, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if !found {
			return domain.ReferenceImage{}, fmt.Errorf("malformed data URL")
		}
		mediaType, params, _ := strings.Cut(header, ";")
		if params != "base64" {
			return domain.ReferenceImage{}, fmt.Errorf("data URL must be base64 encoded")
		}
		declared = strings.ToLower(mediaType)
		encoded = body
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.ReferenceImage{}, fmt.Errorf("invalid base64: %v", err)
	}
	if len(data) == 0 {
		return domain.ReferenceImage{}, fmt.Errorf("empty image")
	}

	mimeType := declared
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.ReferenceImage{}, fmt.Errorf("unsupported content type %q", mimeType)
	}

	return domain.ReferenceImage{MIMEType: mimeType, Data: data}, nil
}
