package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"detectionsite/internal/config"
	"detectionsite/internal/dto"
	"detectionsite/internal/logger"
	"detectionsite/internal/middleware"
	"detectionsite/internal/model"
	"detectionsite/internal/service"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPage  = 1
	defaultLimit = 24
	// multipartMemory is how much of an upload is kept in memory before
	// spilling to temporary files.
	multipartMemory = 8 << 20
)

// UploadFeedHandler stores a multipart "image" upload as a new feed owned
// by the logged-in user.
func UploadFeedHandler(feeds *service.FeedService, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > cfg.MaxUploadSize {
			http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Invalid multipart form", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("image")
		if err != nil {
			http.Error(w, "Image file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			logger.Error("Error reading upload: %v", err)
			http.Error(w, "Unable to read image", http.StatusBadRequest)
			return
		}

		feed, err := feeds.Create(middleware.Username(r.Context()), header.Filename, data)
		if err != nil {
			logger.Error("Error creating feed: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, feeds.Info(feed, false), logger)
	}
}

// ListFeedsHandler returns a page of the logged-in user's feeds, optionally
// narrowed to feeds containing ?object=<type>.
func ListFeedsHandler(feeds *service.FeedService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), defaultPage)
		limit := atoiDefault(q.Get("limit"), defaultLimit)

		object := strings.TrimSpace(q.Get("object"))

		list, total, err := feeds.List(middleware.Username(r.Context()), object, page, limit)
		if err != nil {
			logger.Error("Error listing feeds: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		infos := make([]dto.FeedInfo, 0, len(list))
		for i := range list {
			infos = append(infos, feeds.Info(&list[i], false))
		}

		writeJSON(w, http.StatusOK, dto.FeedsData{
			Feeds:       infos,
			Length:      total,
			TotalPages:  (total + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}, logger)
	}
}

// GetFeedHandler returns one feed with all of its detections.
func GetFeedHandler(feeds *service.FeedService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, ok := loadFeed(w, r, feeds, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, feeds.Info(feed, true), logger)
	}
}

// ProcessFeedHandler runs the model named by the "model" form value.
func ProcessFeedHandler(pipeline *service.Pipeline, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := feedID(w, r)
		if !ok {
			return
		}
		selector := r.FormValue("model")

		outcome, err := pipeline.Run(id, selector)
		if err != nil {
			logger.Error("Error processing feed %d with %q: %v", id, selector, err)
			writeJSON(w, http.StatusInternalServerError, dto.ProcessResult{
				FeedID: id, Model: selector, Message: "processing failed",
			}, logger)
			return
		}

		result := dto.ProcessResult{
			Success:    outcome.OK(),
			FeedID:     id,
			Model:      selector,
			Detections: outcome.Detections,
		}

		status := http.StatusOK
		switch outcome.Status {
		case service.StatusNotFound:
			status, result.Message = http.StatusNotFound, "feed not found"
		case service.StatusUndecodable:
			status, result.Message = http.StatusUnprocessableEntity, "image could not be decoded"
		case service.StatusSkipped:
			result.Message = "unknown model, nothing done"
		}

		writeJSON(w, status, result, logger)
	}
}

// DeleteFeedHandler removes a feed, its files and its detections.
func DeleteFeedHandler(feeds *service.FeedService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := feedID(w, r)
		if !ok {
			return
		}

		err := feeds.Delete(id)
		if errors.Is(err, service.ErrFeedNotFound) {
			http.Error(w, "Feed not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("Error deleting feed %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// FeedImageHandler serves the original image, or the processed one when
// processed is set.
func FeedImageHandler(feeds *service.FeedService, logger *logger.Logger, processed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, ok := loadFeed(w, r, feeds, logger)
		if !ok {
			return
		}

		rel := feed.ImagePath
		if processed {
			if !feed.HasProcessed() {
				http.Error(w, "Feed has not been processed", http.StatusNotFound)
				return
			}
			rel = feed.ProcessedImagePath
			// Processed images are always JPEG whatever their extension.
			w.Header().Set("Content-Type", "image/jpeg")
		}

		path, err := feeds.Files().Path(rel)
		if err != nil || !feeds.Files().Exists(rel) {
			logger.Warning("Image %s of feed %d is missing", rel, feed.ID)
			http.Error(w, "Image not found", http.StatusNotFound)
			return
		}

		http.ServeFile(w, r, path)
	}
}

// ModelsHandler lists the model selectors accepted by the process endpoint.
func ModelsHandler(pipeline *service.Pipeline, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"models": pipeline.Models()}, logger)
	}
}

// loadFeed resolves the {id} URL parameter to a feed, writing the error
// response itself when that fails.
func loadFeed(w http.ResponseWriter, r *http.Request, feeds *service.FeedService, logger *logger.Logger) (*model.ImageFeed, bool) {
	id, ok := feedID(w, r)
	if !ok {
		return nil, false
	}

	feed, err := feeds.Get(id)
	if errors.Is(err, service.ErrFeedNotFound) {
		http.Error(w, "Feed not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		logger.Error("Error loading feed %d: %v", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return feed, true
}

func feedID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid feed id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
