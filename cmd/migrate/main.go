package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"truckmeasure/internal/models"
	"truckmeasure/internal/repository/sqlite"
)

// Reconciles the measurement history with the image directory: reports (and
// with -prune removes) database rows whose annotated image vanished, and
// image files without a history row.
func main() {
	imagesDir := flag.String("images", "images", "Directory containing annotated images")
	dbPath := flag.String("db", filepath.Join("data", "measurements.db"), "Database path")
	prune := flag.Bool("prune", false, "Delete stale rows and orphan files instead of just reporting")
	flag.Parse()

	fmt.Printf("Reconciling %s against database %s\n", *imagesDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewMeasurementRepository(db)

	measurements, err := repo.GetAll(&models.MeasurementFilter{})
	if err != nil {
		log.Fatalf("Failed to load measurements: %v", err)
	}

	onDisk := make(map[string]bool)
	files, err := os.ReadDir(*imagesDir)
	if err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to read images directory: %v", err)
	}
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}
		if strings.HasPrefix(file.Name(), "thumb_") {
			continue
		}
		onDisk[file.Name()] = true
	}

	// Rows without a file.
	staleRows := 0
	inHistory := make(map[string]bool, len(measurements))
	for _, m := range measurements {
		inHistory[m.Filename] = true
		if onDisk[m.Filename] {
			continue
		}
		staleRows++
		if *prune {
			if err := repo.Delete(m.ID); err != nil {
				log.Printf("⚠️  Failed to delete row %d: %v", m.ID, err)
			}
		} else {
			fmt.Printf("stale row: #%d %s (%s)\n", m.ID, m.Filename, m.TruckType)
		}
	}

	// Files without a row.
	orphanFiles := 0
	for filename := range onDisk {
		if inHistory[filename] {
			continue
		}
		orphanFiles++
		if *prune {
			for _, name := range []string{filename, "thumb_" + filename} {
				if err := os.Remove(filepath.Join(*imagesDir, name)); err != nil && !os.IsNotExist(err) {
					log.Printf("⚠️  Failed to delete %s: %v", name, err)
				}
			}
		} else {
			fmt.Printf("orphan file: %s\n", filename)
		}
	}

	action := "found"
	if *prune {
		action = "removed"
	}
	fmt.Printf("✅ Done: %s %d stale row(s) and %d orphan file(s), %d row(s) checked\n",
		action, staleRows, orphanFiles, len(measurements))
}
