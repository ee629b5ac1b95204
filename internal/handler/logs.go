package handler

import (
	"net/http"
	"os"
	"slices"

	"detectionsite/internal/logger"

	"github.com/go-chi/chi/v5"
)

// ShowLogsHandler serves the log file of the {level} URL parameter as text/plain.
func ShowLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, ok := logLevel(w, r)
		if !ok {
			return
		}

		filePath := log.FilePath(level)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Log file not found: " + level + ".log"))
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")

		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates the log file of the {level} URL parameter.
func ClearLogsHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, ok := logLevel(w, r)
		if !ok {
			return
		}

		if err := log.CleanLogs(level); err != nil {
			log.Error("Error clearing logs: %v", err)
			http.Error(w, "Unable to clear logs", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func logLevel(w http.ResponseWriter, r *http.Request) (string, bool) {
	level := chi.URLParam(r, "level")
	if !slices.Contains(logger.Levels, level) {
		http.NotFound(w, r)
		return "", false
	}
	return level, true
}
