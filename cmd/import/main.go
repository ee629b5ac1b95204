package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"detectionsite/internal/app"
	"detectionsite/internal/config"
	"detectionsite/internal/logger"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

type importTask struct {
	path string
	name string
}

func main() {
	cfg := config.Load()

	dir := flag.String("dir", "", "Directory containing images to import")
	user := flag.String("user", "guest", "Owner of the imported feeds")
	model := flag.String("model", "", "Model to run on every imported image (model_1, model_2); empty skips processing")
	flag.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "Database path")
	flag.StringVar(&cfg.MediaDirectory, "media", cfg.MediaDirectory, "Media root directory")
	workers := flag.Int("workers", 2, "Number of images processed in parallel")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *workers < 1 {
		*workers = 1
	}

	appLogger := logger.NewLogger(cfg)
	defer appLogger.Close()

	application, err := app.NewApp(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer application.Close()

	files, err := os.ReadDir(*dir)
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}

	fmt.Printf("Importing images from %s for %s\n", *dir, *user)

	tasks := make(chan importTask)
	var imported, processed, failed atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				data, err := os.ReadFile(task.path)
				if err != nil {
					log.Printf("Skipping %s: %v", task.name, err)
					failed.Add(1)
					continue
				}

				feed, err := application.Feeds().Create(*user, task.name, data)
				if err != nil {
					log.Printf("Failed to import %s: %v", task.name, err)
					failed.Add(1)
					continue
				}
				imported.Add(1)

				if *model == "" {
					continue
				}
				ok, err := application.Pipeline().ProcessImage(feed.ID, *model)
				if err != nil {
					log.Printf("Failed to process %s: %v", task.name, err)
					failed.Add(1)
					continue
				}
				if ok {
					processed.Add(1)
				}
			}
		}()
	}

	skipped := 0
	for _, file := range files {
		if file.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(file.Name()))] {
			skipped++
			continue
		}
		tasks <- importTask{path: filepath.Join(*dir, file.Name()), name: file.Name()}
	}
	close(tasks)
	wg.Wait()

	fmt.Printf("Imported %d images\n", imported.Load())
	if *model != "" {
		fmt.Printf("Processed %d images with %s\n", processed.Load(), *model)
	}
	if n := failed.Load(); n > 0 {
		fmt.Printf("Failed: %d\n", n)
	}
	if skipped > 0 {
		fmt.Printf("Skipped %d entries (not an image)\n", skipped)
	}

	if total, err := application.Feeds().Count(*user); err == nil {
		fmt.Printf("%s now owns %d feeds\n", *user, total)
	}
}
