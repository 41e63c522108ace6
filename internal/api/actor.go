package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/shaiso/Vetflow/internal/domain"
)

// Заголовки, из которых берётся actor. Аутентификацию выполняет gateway перед API.
const (
	HeaderUserID    = "X-User-ID"
	HeaderClinicID  = "X-Clinic-ID"
	HeaderUserEmail = "X-User-Email"
)

type actorKey struct{}

// WithActor добавляет actor в контекст.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom возвращает actor из контекста (пустой, если не задан).
func ActorFrom(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(actorKey{}).(domain.Actor)
	return actor
}

// RequireActor читает actor из заголовков. Без X-User-ID или X-Clinic-ID — 401.
func RequireActor() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := domain.Actor{
				UserID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
				ClinicID: strings.TrimSpace(r.Header.Get(HeaderClinicID)),
				Email:    strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
			}
			if actor.UserID == "" || actor.ClinicID == "" {
				Unauthorized(w, "missing actor headers")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}
