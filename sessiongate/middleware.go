package sessiongate

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Gate returns a Gin middleware handler that gates every matched request on session presence
func Gate(cfg *Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := Evaluate(c.Request.Context(), cfg, c.Request)
		if res.Outcome == OutcomeSkipped {
			c.Next()
			return
		}

		c.Header(RequestIDHeader, res.RequestID)

		// Refreshed session cookies go out on every branch, redirects included
		writeCookies(c.Writer, res.Cookies)

		if res.Outcome != OutcomePass {
			c.Redirect(cfg.redirectStatus, res.RedirectURL)
			c.Abort()
			return
		}

		c.Request = admit(c.Request, res)
		c.Next()
	}
}

// Middleware returns the gate as standard net/http middleware (chi, http.ServeMux, ...)
func Middleware(cfg *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := Evaluate(r.Context(), cfg, r)
			if res.Outcome == OutcomeSkipped {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set(RequestIDHeader, res.RequestID)
			writeCookies(w, res.Cookies)

			if res.Outcome != OutcomePass {
				http.Redirect(w, r, res.RedirectURL, cfg.redirectStatus)
				return
			}

			next.ServeHTTP(w, admit(r, res))
		})
	}
}
