package metrics

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// NewRelicContextKey is the context key for the *newrelic.Application used to
// record custom metrics and events.
type NewRelicContextKey struct{}

// WithNewRelicApp returns a context carrying the New Relic application. A nil
// application leaves the context unchanged.
func WithNewRelicApp(ctx context.Context, app *newrelic.Application) context.Context {
	if app == nil {
		return ctx
	}
	return context.WithValue(ctx, NewRelicContextKey{}, app)
}

func appFromContext(ctx context.Context) (*newrelic.Application, bool) {
	app, ok := ctx.Value(NewRelicContextKey{}).(*newrelic.Application)
	return app, ok && app != nil
}

// RecordEvent records a new event with a name and set of key-value pairs
func RecordEvent(ctx context.Context, eventName string, kvPairs map[string]interface{}) {
	if app, ok := appFromContext(ctx); ok {
		app.RecordCustomEvent(eventName, kvPairs)
	}
}

// RecordDuration records a duration metric in milliseconds
func RecordDuration(ctx context.Context, metricName string, duration time.Duration) {
	if app, ok := appFromContext(ctx); ok {
		app.RecordCustomMetric(metricName, float64(duration/time.Millisecond))
	}
}
