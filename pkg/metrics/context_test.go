package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoApp(t *testing.T) {
	ctx := WithNewRelicApp(context.Background(), nil)
	assert.Nil(t, ctx.Value(NewRelicContextKey{}))

	_, ok := appFromContext(ctx)
	assert.False(t, ok)

	// Without an application or transaction everything is a no-op
	RecordEvent(ctx, "OAppRegistered", map[string]interface{}{"oapp": "x"})
	RecordDuration(ctx, "Bank/ProcessTransaction", time.Second)

	tracer := TraceMethodCall(ctx, "bank", "ProcessTransaction")
	assert.Nil(t, tracer)
	tracer.AddAttribute("slot", 1)
	tracer.OnError(context.Canceled)
	tracer.End()
}
