package observability

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks implements every hook interface by writing debug-level log
// records.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks logging to logger. A nil logger discards.
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &LogHooks{logger: logger}
}

// Register installs h as the pipeline, cache and HTTP hooks.
func (h *LogHooks) Register() {
	SetPipelineHooks(h)
	SetCacheHooks(h)
	SetHTTPHooks(h)
}

func (h *LogHooks) OnSolveStart(_ context.Context, uri string, refresh bool) {
	h.logger.Debug("solve", "feed", uri, "refresh", refresh)
}

func (h *LogHooks) OnSolveComplete(_ context.Context, uri string, selections int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("solve failed", "feed", uri, "elapsed", d.Round(time.Millisecond), "err", err)
		return
	}
	h.logger.Debug("solved", "feed", uri, "selections", selections, "elapsed", d.Round(time.Millisecond))
}

func (h *LogHooks) OnCheckoutStart(_ context.Context, name, revision string) {
	h.logger.Debug("checkout", "component", name, "revision", revision)
}

func (h *LogHooks) OnCheckoutComplete(_ context.Context, name string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("checkout failed", "component", name, "elapsed", d.Round(time.Millisecond), "err", err)
		return
	}
	h.logger.Debug("checked out", "component", name, "elapsed", d.Round(time.Millisecond))
}

func (h *LogHooks) OnDescriptorsWritten(_ context.Context, top, deps int) {
	h.logger.Debug("descriptors written", "top", top, "dependencies", deps)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "elapsed", d.Round(time.Millisecond))
}

func (h *LogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}

var (
	_ PipelineHooks = (*LogHooks)(nil)
	_ CacheHooks    = (*LogHooks)(nil)
	_ HTTPHooks     = (*LogHooks)(nil)
)
