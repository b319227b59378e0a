package middleware

import (
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"recipehub-search/pkg/logging/logging"
)

// Recoverer turns a panic into a logged JSON 500.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logging.L(r.Context()).Error("panic_recovered",
					zap.Any("error", rec),
					zap.ByteString("stack", debug.Stack()),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				body := `{"error":"internal_server_error"}`
				if id := chimw.GetReqID(r.Context()); id != "" {
					body = `{"error":"internal_server_error","request_id":"` + id + `"}`
				}
				_, _ = w.Write([]byte(body))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
