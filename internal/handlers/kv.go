package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cloudkv/internal/kverr"
	"cloudkv/internal/logger"
	"cloudkv/internal/middleware"
	"cloudkv/internal/service"
)

// KVHandler serves the public namespace and key-value surface.
type KVHandler struct {
	svc          *service.KV
	maxBodyBytes int64
}

// NewKVHandler creates a KVHandler. maxBodyBytes caps request body reads on
// set so an oversized upload fails without being buffered in full.
func NewKVHandler(svc *service.KV, maxBodyBytes int64) *KVHandler {
	return &KVHandler{svc: svc, maxBodyBytes: maxBodyBytes}
}

// CreateNamespace handles POST /create. The only input is the requesting
// network address; the response carries the write token exactly once.
func (h *KVHandler) CreateNamespace(c *gin.Context) {
	ns, err := h.svc.CreateNamespace(c.Request.Context(), c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ns)
}

// Get handles GET /{read_token}/{key}, and GET /{read_token}/ (listing)
// when the key segment is empty.
func (h *KVHandler) Get(c *gin.Context) {
	readToken, key := pathParams(c)
	if key == "" {
		h.list(c, readToken)
		return
	}
	obj, err := h.svc.Get(c.Request.Context(), readToken, key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypeOrDefault(obj.ContentType), obj.Data)
}

// Head handles HEAD /{read_token}/{key}: identical headers to Get with an
// empty body.
func (h *KVHandler) Head(c *gin.Context) {
	readToken, key := pathParams(c)
	if key == "" {
		c.Status(http.StatusOK)
		return
	}
	obj, err := h.svc.Stat(c.Request.Context(), readToken, key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Type", contentTypeOrDefault(obj.ContentType))
	c.Header("Content-Length", strconv.FormatInt(obj.Size, 10))
	c.Status(http.StatusOK)
}

// Set handles POST /{read_token}/{key}. The body is the raw value; the
// write token arrives in the Authorization header (raw or Bearer-prefixed);
// an optional TTL header carries the expiry in seconds.
func (h *KVHandler) Set(c *gin.Context) {
	readToken, key := pathParams(c)
	if key == "" {
		respondError(c, kverr.Validation("key is required"))
		return
	}

	var ttlSeconds *int64
	if raw := c.GetHeader("TTL"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(c, kverr.Validation("TTL header must be an integer number of seconds"))
			return
		}
		ttlSeconds = &n
	}

	// +1 so a body at exactly the limit passes and one byte over trips the
	// reader before the full payload is buffered.
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, kverr.Validation("request body too large"))
			return
		}
		respondError(c, kverr.Validation("failed to read request body"))
		return
	}

	info, err := h.svc.Set(c.Request.Context(), readToken, key,
		c.GetHeader("Authorization"), body, c.GetHeader("Content-Type"), ttlSeconds)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Delete handles DELETE /{read_token}/{key}.
func (h *KVHandler) Delete(c *gin.Context) {
	readToken, key := pathParams(c)
	if key == "" {
		respondError(c, kverr.Validation("key is required"))
		return
	}
	err := h.svc.Delete(c.Request.Context(), readToken, key, c.GetHeader("Authorization"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": key})
}

// list serves GET /{read_token}/ with optional like and offset params.
func (h *KVHandler) list(c *gin.Context, readToken string) {
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, kverr.Validation("offset must be a non-negative integer"))
			return
		}
		offset = n
	}
	result, err := h.svc.List(c.Request.Context(), readToken, c.Query("like"), offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func pathParams(c *gin.Context) (readToken, key string) {
	return c.Param("namespace"), strings.TrimPrefix(c.Param("key"), "/")
}

func contentTypeOrDefault(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

// respondError maps service errors to HTTP responses. Unexpected failures
// are logged with context and surfaced as a generic internal error.
func respondError(c *gin.Context, err error) {
	e := kverr.From(err)
	if e.Kind == kverr.KindInternal {
		logger.Error("request failed",
			"request_id", middleware.GetRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", e.Err,
		)
	}
	c.JSON(e.Code, gin.H{"error": e.Message, "kind": e.Kind})
}
