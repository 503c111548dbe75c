package blob

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// MediumAvatarSize is the edge length of the medium avatar thumbnail.
const MediumAvatarSize = 500

// mediumThumbnail decodes an avatar original and rescales it to the
// medium thumbnail, always encoded as PNG. Corrupt source data surfaces
// as a decode error; callers treat that as a per-image failure, not a run
// failure.
func mediumThumbnail(data []byte) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode avatar: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, MediumAvatarSize, MediumAvatarSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode %s avatar thumbnail: %w", format, err)
	}
	return buf.Bytes(), nil
}
