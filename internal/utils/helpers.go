package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
)

// SendErrorResponse отправляет ошибку в формате JSON
func SendErrorResponse(w http.ResponseWriter, statusCode int, kind models.ErrorKind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := models.ErrorResponse{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// SendError переводит ошибку сервиса в ответ. Внутренние ошибки не раскрываются клиенту.
func SendError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	var errorResponse *models.ErrorResponse
	if errors.As(err, &errorResponse) {
		status := errorResponse.StatusCode
		if status == 0 {
			status = models.NewErrorResponse(errorResponse.Kind, "").StatusCode
		}
		SendErrorResponse(w, status, errorResponse.Kind, errorResponse.Error())
		return
	}
	logger.Error(fallback, "error", err)
	SendErrorResponse(w, http.StatusInternalServerError, models.KindInternal, fallback)
}

// SendJSON отправляет успешный ответ в формате JSON
func SendJSON(w http.ResponseWriter, logger *slog.Logger, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// ParseLimitOffset обрабатывает limit и offset
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 50 {
			return 0, 0, fmt.Errorf("invalid limit parameter, must be a positive integer [0:50]")
		}
	} else {
		limit = 5
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter, must be a non-negative integer")
		}
	} else {
		offset = 0
	}

	return limit, offset, nil
}

// ParseTime разбирает время в формате RFC 3339
func ParseTime(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, models.Errorf(models.KindInvalid, "missing required parameter: %s", name)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, models.Errorf(models.KindInvalid, "invalid %s, expected RFC 3339 time", name)
	}
	return t, nil
}
