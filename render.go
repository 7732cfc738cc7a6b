package storefront

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// envelope is the JSON shape of every API response.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Success writes {"status":"success","data":...}.
func Success(c echo.Context, code int, data any) error {
	return c.JSON(code, envelope{Status: "success", Data: data})
}

// Failure writes {"status":"error","message":...}.
func Failure(c echo.Context, code int, msg string) error {
	return c.JSON(code, envelope{Status: "error", Message: msg})
}

// errorPage is the bare public error document.
func errorPage(siteName string, code int) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		text := http.StatusText(code)
		_, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%s | %s</title></head><body><main class="error"><h1>%d</h1><p>%s</p><p><a href="/">Back to the front page</a></p></main></body></html>`,
			templ.EscapeString(text), templ.EscapeString(siteName), code, templ.EscapeString(text))
		return err
	})
}
