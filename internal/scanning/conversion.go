package scanning

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// jpegQuality is used whenever an upload has to be re-encoded
const jpegQuality = 90

// pdfToImage renders the first page of a PDF e-ticket
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes any supported still image format
func decodeImage(imageData []byte, mimeType string) (image.Image, error) {
	// Check for HEIC/HEIF format (common on iPhones) - Go's standard image package doesn't support it
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(imageData), imaging.AutoOrientation(true))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// encodeJPEG encodes an image at its native size
func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files typically start with specific magic bytes
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// ftyp box at offset 4 followed by a HEIC-related brand
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// isJPEGFormat checks for the JPEG start-of-image marker
func isJPEGFormat(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

// prepareImageData normalizes the MIME type and converts the image to JPEG if needed.
// Returns the JPEG data and whether conversion occurred.
func prepareImageData(imageData []byte, contentType string) ([]byte, bool, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	// Camera stills are already JPEG and are sent untouched
	if isJPEGFormat(imageData) && !isHEICMimeType(mimeType) {
		return imageData, false, nil
	}

	var (
		img image.Image
		err error
	)
	if mimeType == "application/pdf" {
		img, err = pdfToImage(imageData)
		if err != nil {
			return nil, false, fmt.Errorf("converting PDF to image: %w", err)
		}
	} else {
		img, err = decodeImage(imageData, mimeType)
		if err != nil {
			return nil, false, fmt.Errorf("converting image to JPEG: %w", err)
		}
	}

	jpegData, err := encodeJPEG(img)
	if err != nil {
		return nil, false, err
	}
	return jpegData, true, nil
}
