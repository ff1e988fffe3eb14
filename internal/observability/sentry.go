package observability

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Limmita2/FaseWatch/internal/config"
)

// InitSentry enables error reporting when a DSN is configured. The returned
// flush must run before the process exits; it is never nil.
func InitSentry(cfg config.SentryConfig, component string) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		SampleRate:       1.0,
		AttachStacktrace: true,
		ServerName:       component,
	})
	if err != nil {
		return func() {}, fmt.Errorf("sentry initialization failed: %w", err)
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
	})
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// ReportError sends err to Sentry with the given tags. Without InitSentry it
// does nothing.
func ReportError(err error, tags map[string]string) {
	if err == nil || sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetFingerprint([]string{tags["reason"], fmt.Sprintf("%T", err)})
		sentry.CaptureException(err)
	})
}
