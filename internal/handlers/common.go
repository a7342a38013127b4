package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/services"
	"github.com/senyabanana/procurement-service/internal/utils"
)

// Base - общие зависимости обработчиков.
type Base struct {
	Resolver services.ActorResolver
	Logger   *slog.Logger
	Timeout  time.Duration
}

// NewBase создает новый экземпляр Base.
func NewBase(resolver services.ActorResolver, logger *slog.Logger, timeout time.Duration) Base {
	return Base{Resolver: resolver, Logger: logger, Timeout: timeout}
}

// begin ограничивает запрос по времени и определяет пользователя по параметру username.
// При ошибке ответ уже отправлен и ok равно false.
func (b *Base) begin(w http.ResponseWriter, r *http.Request) (ctx context.Context, cancel context.CancelFunc, actor models.Actor, ok bool) {
	ctx, cancel = context.WithTimeout(r.Context(), b.Timeout)
	actor, err := b.Resolver.Resolve(ctx, r.URL.Query().Get("username"))
	if err != nil {
		cancel()
		b.Logger.Info("actor resolution failed", "path", r.URL.Path, "error", err)
		utils.SendError(w, b.Logger, err, "failed to resolve user")
		return nil, nil, models.Actor{}, false
	}
	return ctx, cancel, actor, true
}

func (b *Base) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, models.KindInvalid, "invalid request body")
		return false
	}
	return true
}

func (b *Base) respond(w http.ResponseWriter, v any, err error, fallback string) {
	if err != nil {
		utils.SendError(w, b.Logger, err, fallback)
		return
	}
	utils.SendJSON(w, b.Logger, http.StatusOK, v)
}
