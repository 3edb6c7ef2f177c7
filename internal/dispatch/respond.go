package dispatch

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/vitaliydpua/appgw/internal/apierror"
	"github.com/vitaliydpua/appgw/internal/auth"
	"github.com/vitaliydpua/appgw/internal/observability"
)

// Response headers set by the dispatcher.
const (
	// HeaderHistoryCursor carries the per-user change cursor
	// "{userId}.{cacheUpdatedAt}".
	HeaderHistoryCursor = "X-History-Changes-Id"

	headerETag        = "ETag"
	headerContentType = "Content-Type"
)

// redirectLinkField is the result field naming the redirect target.
const redirectLinkField = "redirectLink"

// FileResult is the handler result shape for file-send routes.
type FileResult struct {
	// Path is the file to stream.
	Path string

	// Filename, when set, is offered as the download name.
	Filename string

	// DeleteAfterSend removes the file once it has been written out.
	DeleteAfterSend bool
}

// StreamResult is the handler result shape for byte-stream proxy routes.
type StreamResult struct {
	// URL is the upstream resource to pipe through.
	URL string
}

// respond shapes the handler result per the route's response mode.
func (d *Dispatcher) respond(c *gin.Context, route *Route, authCtx *auth.Context, result any) {
	switch route.mode() {
	case ResponseRedirect:
		d.respondRedirect(c, result)
	case ResponseFile:
		d.respondFile(c, result)
	case ResponseStream:
		d.respondStream(c, result)
	default:
		d.setConditionalHeaders(c, route, authCtx, result)
		c.JSON(http.StatusOK, gin.H{"data": result})
	}
}

// respondRedirect issues a 302 to the result's redirect link, or 404
// when the link is absent.
func (d *Dispatcher) respondRedirect(c *gin.Context, result any) {
	link, _ := topLevelValues(result)[redirectLinkField].(string)
	if link == "" {
		d.writeError(c, apierror.NotFound("REDIRECT_TARGET_MISSING", "redirect target not found"))
		return
	}
	c.Redirect(http.StatusFound, link)
}

// respondFile streams a file from disk, optionally removing it after
// the response is written.
func (d *Dispatcher) respondFile(c *gin.Context, result any) {
	file, ok := result.(*FileResult)
	if !ok || file.Path == "" {
		d.writeError(c, apierror.NotFound("FILE_NOT_FOUND", "file not found"))
		return
	}
	if _, err := os.Stat(file.Path); err != nil {
		d.writeError(c, apierror.NotFound("FILE_NOT_FOUND", "file not found"))
		return
	}

	if file.Filename != "" {
		c.FileAttachment(file.Path, file.Filename)
	} else {
		c.File(file.Path)
	}

	if file.DeleteAfterSend {
		if err := os.Remove(file.Path); err != nil {
			d.logger.WithContext(c.Request.Context()).Warn("sent file not removed",
				observability.String("path", file.Path),
				observability.Error(err),
			)
		}
	}
}

// respondStream pipes an upstream resource to the client, forwarding
// its content type. A client disconnect cancels the request context,
// which tears down the upstream connection mid-copy.
func (d *Dispatcher) respondStream(c *gin.Context, result any) {
	stream, ok := result.(*StreamResult)
	if !ok || stream.URL == "" {
		d.writeError(c, apierror.NotFound("STREAM_TARGET_MISSING", "stream target not found"))
		return
	}

	ctx := c.Request.Context()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stream.URL, nil)
	if err != nil {
		d.writeError(c, apierror.Internal("upstream request failed").WithCause(err))
		return
	}

	resp, err := d.streamClient.Do(req)
	if err != nil {
		d.writeError(c, apierror.Internal("upstream request failed").WithCause(err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get(headerContentType); contentType != "" {
		c.Header(headerContentType, contentType)
	}
	c.Status(resp.StatusCode)

	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		// Includes client disconnects; nothing more can be written.
		d.logger.WithContext(ctx).Debug("stream copy interrupted",
			observability.Error(err),
		)
	}
}

// setConditionalHeaders adds the opt-in cache hash and history cursor
// headers.
func (d *Dispatcher) setConditionalHeaders(c *gin.Context, route *Route, authCtx *auth.Context, result any) {
	if len(route.CacheHashFields) > 0 {
		c.Header(headerETag, CacheHash(result, route.CacheHashFields))
	}
	if route.HistoryCursor && authCtx != nil && authCtx.UserID != "" {
		c.Header(HeaderHistoryCursor,
			fmt.Sprintf("%s.%d", authCtx.UserID, authCtx.CacheUpdatedAt))
	}
}

// writeError writes the uniform error envelope.
func (d *Dispatcher) writeError(c *gin.Context, err *apierror.Error) {
	c.JSON(err.Status, apierror.NewEnvelope(err))
}
