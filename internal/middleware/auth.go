// Package middleware содержит HTTP middleware витрины samshop.
package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/samshop/internal/service"
)

// CallbackTokenHeader содержит токен, которым платёжная система подписывает уведомления.
const CallbackTokenHeader = "X-Callback-Token"

// CallbackAuth пропускает дальше только уведомления с верным токеном.
// Тело запроса до проверки не читается.
func CallbackAuth(token string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := service.VerifyCallbackToken(token, r.Header.Get(CallbackTokenHeader))
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, service.ErrConfig):
				logger.Error("webhook token is not configured")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			default:
				logger.Warn("webhook rejected", zap.String("remote", r.RemoteAddr), zap.Error(err))
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			}
		})
	}
}
