package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"truckmeasure/internal/logger"
)

func testJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func newTestBuffer(t *testing.T, limit int) (*BufferService, string) {
	t.Helper()

	dir := t.TempDir()
	log := logger.NewLogger(filepath.Join(dir, "logs"))
	return NewBufferService(filepath.Join(dir, "images"), limit, 64, log), filepath.Join(dir, "images")
}

func TestAddImageFilename(t *testing.T) {
	buffer, _ := newTestBuffer(t, 10)

	filename := buffer.AddImage(testJPEG(t, 320, 240), "Semi Trailer")

	if !strings.HasSuffix(filename, "_semi_trailer.jpg") {
		t.Errorf("Expected sanitized truck type suffix, got %s", filename)
	}
	if strings.ContainsAny(filename, " /\\") {
		t.Errorf("Filename should be path safe, got %s", filename)
	}
}

func TestFlushWritesImageAndThumbnail(t *testing.T) {
	buffer, imagesDir := newTestBuffer(t, 10)

	data := testJPEG(t, 320, 240)
	filename := buffer.AddImage(data, "Box Truck")

	// Nothing on disk before the flush.
	if _, err := os.Stat(filepath.Join(imagesDir, filename)); !os.IsNotExist(err) {
		t.Error("Image should not exist before flush")
	}

	buffer.FlushImages()

	written, err := os.ReadFile(filepath.Join(imagesDir, filename))
	if err != nil {
		t.Fatalf("Failed to read flushed image: %v", err)
	}
	if !bytes.Equal(written, data) {
		t.Error("Flushed image bytes should match the queued bytes")
	}

	thumbPath := filepath.Join(imagesDir, ThumbnailName(filename))
	thumbData, err := os.ReadFile(thumbPath)
	if err != nil {
		t.Fatalf("Failed to read thumbnail: %v", err)
	}

	thumb, err := jpeg.Decode(bytes.NewReader(thumbData))
	if err != nil {
		t.Fatalf("Failed to decode thumbnail: %v", err)
	}
	if thumb.Bounds().Dx() != 64 {
		t.Errorf("Expected thumbnail width 64, got %d", thumb.Bounds().Dx())
	}
}

func TestFullBufferFlushesEarly(t *testing.T) {
	buffer, imagesDir := newTestBuffer(t, 2)

	data := testJPEG(t, 64, 48)
	first := buffer.AddImage(data, "Cargo Van")
	second := buffer.AddImage(data, "Cargo Van")

	// The third add hits the limit and flushes the first two.
	buffer.AddImage(data, "Cargo Van")

	for _, filename := range []string{first, second} {
		if _, err := os.Stat(filepath.Join(imagesDir, filename)); err != nil {
			t.Errorf("Expected %s to be flushed when buffer filled: %v", filename, err)
		}
	}
}

func TestFlushEmptyBuffer(t *testing.T) {
	buffer, imagesDir := newTestBuffer(t, 10)

	buffer.FlushImages()

	if _, err := os.Stat(imagesDir); !os.IsNotExist(err) {
		t.Error("Empty flush should not create the image directory")
	}
}

func TestThumbnailName(t *testing.T) {
	if got := ThumbnailName("a.jpg"); got != "thumb_a.jpg" {
		t.Errorf("Expected thumb_a.jpg, got %s", got)
	}
}
