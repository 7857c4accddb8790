package util

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// ImageSpec describes the frame every uploaded photo is normalised to.
type ImageSpec struct {
	Width   int
	Height  int
	Quality int
}

var (
	SubmissionImage = ImageSpec{Width: 1080, Height: 1920, Quality: 85}
	AvatarImage     = ImageSpec{Width: 512, Height: 512, Quality: 85}
)

// DetectImage sniffs the content and rejects anything that is not an image.
func DetectImage(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), MimeImage) {
		return mt.String(), fmt.Errorf("%w: file must be an image, got %s", ErrInvalidOperation, mt.String())
	}
	return mt.String(), nil
}

// ReadUpload reads at most MaxUploadSize bytes.
func ReadUpload(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidOperation, MaxUploadSize)
	}
	return data, nil
}

// ReadImageUpload is ReadUpload plus a content type check.
func ReadImageUpload(r io.Reader) ([]byte, error) {
	data, err := ReadUpload(r)
	if err != nil {
		return nil, err
	}
	if _, err := DetectImage(data); err != nil {
		return nil, err
	}
	return data, nil
}

// ProcessImage center-crops to the spec's aspect ratio, scales to its exact
// size and re-encodes as JPEG. EXIF orientation is applied first.
func ProcessImage(data []byte, spec ImageSpec) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode image: %v", ErrInvalidOperation, err)
	}

	filter := imaging.Lanczos
	if img.Bounds().Dx() <= spec.Width {
		filter = imaging.CatmullRom
	}
	out := imaging.Fill(img, spec.Width, spec.Height, imaging.Center, filter)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(spec.Quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
