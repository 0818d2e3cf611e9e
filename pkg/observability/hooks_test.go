package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnSolveStart(ctx, "http://example.org/a.xml", false)
	p.OnSolveComplete(ctx, "http://example.org/a.xml", 3, time.Second, nil)
	p.OnCheckoutStart(ctx, "config", "abc123")
	p.OnCheckoutComplete(ctx, "config", time.Second, nil)
	p.OnDescriptorsWritten(ctx, 1, 2)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "feed")
	c.OnCacheMiss(ctx, "feed")
	c.OnCacheSet(ctx, "feed", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "example.org", "/a.xml")
	h.OnResponse(ctx, "GET", "example.org", "/a.xml", 200, time.Second)
	h.OnError(ctx, "GET", "example.org", "/a.xml", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	hooks := NewLogHooks(nil)
	hooks.Register()
	if Pipeline() != PipelineHooks(hooks) || Cache() != CacheHooks(hooks) || HTTP() != HTTPHooks(hooks) {
		t.Error("Register should install the hooks for every category")
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	custom := NewLogHooks(nil)
	SetPipelineHooks(custom)
	SetPipelineHooks(nil)
	if Pipeline() != PipelineHooks(custom) {
		t.Error("SetPipelineHooks(nil) should keep the registered hooks")
	}
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	h := NewLogHooks(logger)
	ctx := context.Background()

	h.OnSolveComplete(ctx, "http://example.org/a.xml", 2, time.Second, nil)
	h.OnCheckoutComplete(ctx, "config", time.Second, errors.New("exit status 128"))
	h.OnCacheMiss(ctx, "feed")

	out := buf.String()
	for _, want := range []string{"solved", "checkout failed", "exit status 128", "cache miss"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
