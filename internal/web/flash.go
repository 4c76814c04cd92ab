package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const flashCookie = "sg-flash"

// Flash is a one-shot notice shown on the next rendered page
type Flash struct {
	Kind    string `json:"kind"` // success or error
	Message string `json:"message"`
}

func setFlash(c *gin.Context, kind, message string, secure bool) {
	raw, err := json.Marshal(Flash{Kind: kind, Message: message})
	if err != nil {
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads the pending flash and expires its cookie
func popFlash(c *gin.Context, secure bool) *Flash {
	value, err := c.Cookie(flashCookie)
	if err != nil || value == "" {
		return nil
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashCookie,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var f Flash
	if err := json.Unmarshal(raw, &f); err != nil || f.Message == "" {
		return nil
	}
	return &f
}
