package storage

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nfnt/resize"

	"truckmeasure/internal/logger"
)

// Image is one annotated result waiting to be flushed to disk.
type Image struct {
	Filename string
	Data     []byte
}

// BufferService batches annotated result images in memory and flushes them
// to the image directory on a ticker. A fixed-width thumbnail is written
// next to each image for the gallery.
type BufferService struct {
	imagesDir   string
	images      []Image
	bufferLimit int
	thumbWidth  int
	logger      *logger.Logger
	mu          sync.Mutex
}

func NewBufferService(imagesDir string, bufferLimit, thumbWidth int, log *logger.Logger) *BufferService {
	return &BufferService{
		imagesDir:   imagesDir,
		bufferLimit: bufferLimit,
		thumbWidth:  thumbWidth,
		images:      make([]Image, 0),
		logger:      log,
	}
}

// Run flushes the buffer every flushInterval seconds.
func (s *BufferService) Run(flushInterval int) {
	ticker := time.NewTicker(time.Duration(flushInterval) * time.Second)

	defer ticker.Stop()
	for {
		<-ticker.C
		s.FlushImages()
	}
}

// AddImage queues an annotated result for writing and returns the filename
// it will be stored under. The filename is deterministic so callers can
// persist it before the flush happens.
func (s *BufferService) AddImage(imageData []byte, truckType string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02_15-04-05.000")
	filename := fmt.Sprintf("%s_%s.jpg", timestamp, sanitize(truckType))

	if len(s.images) >= s.bufferLimit {
		s.logger.Warning("Image buffer full (%d), flushing early", s.bufferLimit)
		s.flushLocked()
	}

	s.images = append(s.images, Image{Filename: filename, Data: imageData})
	s.logger.Info("Buffer size: %d/%d", len(s.images), s.bufferLimit)

	return filename
}

// FlushImages writes all buffered images and their thumbnails to disk.
func (s *BufferService) FlushImages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *BufferService) flushLocked() {
	if len(s.images) == 0 {
		return
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating image directory: %v", err)
		return
	}

	for _, image := range s.images {
		fullpath := filepath.Join(s.imagesDir, image.Filename)

		if err := os.WriteFile(fullpath, image.Data, 0644); err != nil {
			s.logger.Error("Error saving image %s: %v", image.Filename, err)
			continue
		}

		if err := s.writeThumbnail(image); err != nil {
			s.logger.Warning("Error saving thumbnail for %s: %v", image.Filename, err)
		}
	}

	s.logger.Info("Flushed %d images to disk", len(s.images))
	s.images = s.images[:0]
}

// writeThumbnail decodes the stored JPEG and writes a width-constrained copy
// under the thumb_ prefix.
func (s *BufferService) writeThumbnail(img Image) error {
	decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := resize.Resize(uint(s.thumbWidth), 0, decoded, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return os.WriteFile(filepath.Join(s.imagesDir, ThumbnailName(img.Filename)), buf.Bytes(), 0644)
}

// ThumbnailName maps an image filename to its thumbnail filename.
func ThumbnailName(filename string) string {
	return "thumb_" + filename
}

// sanitize makes a truck type safe for use in filenames.
func sanitize(truckType string) string {
	return strings.ReplaceAll(strings.ToLower(truckType), " ", "_")
}
