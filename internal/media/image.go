package media

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

var supportedImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// IsSupported reports whether the filename has an extension we can decode and re-encode.
func IsSupported(filename string) bool {
	return supportedImageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ContentType guesses the MIME type from the file extension.
func ContentType(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Stem returns the filename without directory and extension.
func Stem(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Thumbnail scales the image down to width pixels, keeping the aspect ratio.
// Images already narrower than width are only re-encoded. The output format
// follows the extension of filename.
func Thumbnail(data []byte, filename string, width int) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	thumb := src
	if src.Bounds().Dx() > width {
		thumb = imaging.Resize(src, width, 0, imaging.Lanczos)
	}

	format, err := imaging.FormatFromFilename(filename)
	if err != nil {
		format = imaging.JPEG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
