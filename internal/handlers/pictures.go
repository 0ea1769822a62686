package handlers

import (
	"net/http"
	"path/filepath"

	"truckmeasure/internal/config"
	"truckmeasure/internal/services/storage"
)

// ViewPictureHandler serves a stored annotated image by filename, or its
// thumbnail when thumb=1 is set. Filenames are flattened to their base so
// the query can't escape the image directory.
func ViewPictureHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		if image == "" {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}

		filename := filepath.Base(image)
		if r.URL.Query().Get("thumb") == "1" {
			filename = storage.ThumbnailName(filename)
		}

		http.ServeFile(w, r, filepath.Join(cfg.ImageDirectory, filename))
	}
}
