package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lockset/pkg/observability"
)

// debugHooks streams lockfile, cache, and HTTP events to the CLI logger.
// Installed only at debug level so verbose runs show what the library is
// doing without instrumenting the default output.
type debugHooks struct {
	logger *log.Logger
}

func installDebugHooks(logger *log.Logger) {
	h := &debugHooks{logger: logger}
	observability.SetLockfileHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

func (h *debugHooks) OnParseStart(_ context.Context, format, path string) {
	h.logger.Debug("parse start", "format", format, "path", path)
}

func (h *debugHooks) OnParseComplete(_ context.Context, format, path string, depCount int, duration time.Duration, err error) {
	if err != nil {
		h.logger.Debug("parse failed", "format", format, "path", path, "err", err)
		return
	}
	h.logger.Debug("parse complete", "format", format, "path", path, "deps", depCount, "took", duration)
}

func (h *debugHooks) OnResolveStart(_ context.Context, format, root string) {
	h.logger.Debug("resolve start", "format", format, "root", root)
}

func (h *debugHooks) OnResolveComplete(_ context.Context, format, root string, depCount int, duration time.Duration, err error) {
	if err != nil {
		h.logger.Debug("resolve failed", "format", format, "root", root, "err", err)
		return
	}
	h.logger.Debug("resolve complete", "format", format, "root", root, "deps", depCount, "took", duration)
}

func (h *debugHooks) OnExportStart(_ context.Context, format string) {
	h.logger.Debug("export start", "format", format)
}

func (h *debugHooks) OnExportComplete(_ context.Context, format string, duration time.Duration, err error) {
	if err != nil {
		h.logger.Debug("export failed", "format", format, "err", err)
		return
	}
	h.logger.Debug("export complete", "format", format, "took", duration)
}

func (h *debugHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "key", keyType)
}

func (h *debugHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "key", keyType)
}

func (h *debugHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "key", keyType, "bytes", size)
}

func (h *debugHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *debugHooks) OnResponse(_ context.Context, method, host, path string, statusCode int, duration time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", statusCode, "took", duration)
}

func (h *debugHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}
