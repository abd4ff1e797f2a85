package httputil

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
)

const (
	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
)

// APIResponse is the envelope shared by the gateway and internal APIs
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(ctx *fasthttp.RequestCtx, resp APIResponse, statusCode int) {
	body, err := json.Marshal(resp)
	if err != nil {
		ctx.Error("failed to encode response", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType(contentTypeJSON)
	ctx.SetBody(body)
}

// JSONResponse sends an envelope carrying both a message and data
func JSONResponse(ctx *fasthttp.RequestCtx, success bool, message string, data interface{}, statusCode int) {
	writeJSON(ctx, APIResponse{Success: success, Message: message, Data: data}, statusCode)
}

func JSONError(ctx *fasthttp.RequestCtx, message string, statusCode int) {
	writeJSON(ctx, APIResponse{Success: false, Message: message}, statusCode)
}

func JSONData(ctx *fasthttp.RequestCtx, data interface{}, statusCode int) {
	writeJSON(ctx, APIResponse{Success: true, Data: data}, statusCode)
}

// HTML writes an HTML body with a 200 status
func HTML(ctx *fasthttp.RequestCtx, body []byte) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType(contentTypeHTML)
	ctx.SetBody(body)
}

// Refuse answers a request with a plain text refusal. No redirect is issued.
func Refuse(ctx *fasthttp.RequestCtx, message string, statusCode int) {
	ctx.ResetBody()
	ctx.Response.Header.Del(fasthttp.HeaderLocation)
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType(contentTypeText)
	ctx.SetBodyString(message)
}

// WantsJSON reports whether the Accept header lists application/json
func WantsJSON(ctx *fasthttp.RequestCtx) bool {
	accept := string(ctx.Request.Header.Peek(fasthttp.HeaderAccept))
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, _ := strings.Cut(part, ";")
		if strings.TrimSpace(mediaType) == contentTypeJSON {
			return true
		}
	}
	return false
}
