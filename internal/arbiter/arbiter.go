// Package arbiter implements the request arbiter: the per-request pipeline
// tying the cache, context gatherer, sanitizer, LLM connector, and safety
// validator together under a hierarchy of deadlines (spec.md §4.2/§5).
package arbiter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nudge-sh/nudge/internal/cache"
	"github.com/nudge-sh/nudge/internal/config"
	"github.com/nudge-sh/nudge/internal/ctxgather"
	"github.com/nudge-sh/nudge/internal/errs"
	"github.com/nudge-sh/nudge/internal/llm"
	"github.com/nudge-sh/nudge/internal/safety"
	"github.com/nudge-sh/nudge/internal/sanitizer"
	"github.com/nudge-sh/nudge/internal/telemetry"
	"github.com/nudge-sh/nudge/pkg/protocol"
)

// Arbiter owns the full completion/diagnosis request pipeline. It never
// panics: every failure path is converted to a structured protocol.Response
// (spec.md §4.2: "the arbiter never panics the server").
type Arbiter struct {
	store     *config.Store
	cache     *cache.Cache
	gatherer  *ctxgather.Gatherer
	connector *llm.Connector
	sanitizer *sanitizer.Sanitizer
	safety    *safety.Validator
	limiter   *limiter
	telemetry *telemetry.Telemetry
}

// New wires an Arbiter from its already-constructed dependencies. cap is
// read fresh from config on each New/Reload call site since max_in_flight
// is not itself hot-reloadable mid-flight (changing capacity under live
// occupancy is out of scope; a daemon restart picks up a new value). tel
// may be nil — telemetry is advisory instrumentation, not a request-path
// dependency.
func New(store *config.Store, c *cache.Cache, gatherer *ctxgather.Gatherer, connector *llm.Connector, san *sanitizer.Sanitizer, val *safety.Validator, tel *telemetry.Telemetry) *Arbiter {
	cfg := store.Get()
	return &Arbiter{
		store:     store,
		cache:     c,
		gatherer:  gatherer,
		connector: connector,
		sanitizer: san,
		safety:    val,
		limiter:   newLimiter(cfg.Arbiter.MaxInFlight),
		telemetry: tel,
	}
}

// startSpan opens a request span when telemetry is wired, and is a no-op
// otherwise.
func (a *Arbiter) startSpan(ctx context.Context, op string) (context.Context, func()) {
	if a.telemetry == nil {
		return ctx, func() {}
	}
	spanCtx, span := a.telemetry.StartRequestSpan(ctx, op)
	return spanCtx, func() { span.End() }
}

func (a *Arbiter) recordCacheStatus(ctx context.Context, status string) {
	if a.telemetry != nil {
		a.telemetry.RecordCacheStatus(ctx, status)
	}
}

func (a *Arbiter) recordSingleflightCollapse(ctx context.Context) {
	if a.telemetry != nil {
		a.telemetry.RecordSingleflightCollapse(ctx)
	}
}

func (a *Arbiter) recordSafetyBlock(ctx context.Context) {
	if a.telemetry != nil {
		a.telemetry.RecordSafetyBlock(ctx)
	}
}

// Handle runs the full pipeline for one decoded request and always returns
// a Response — errors are categorized into ErrorKind/Message rather than
// propagated to the caller (spec.md §7).
func (a *Arbiter) Handle(ctx context.Context, req protocol.Request) protocol.Response {
	start := time.Now()
	cfg := a.store.Get()

	// A shell integration that doesn't track its own session id still gets
	// per-request history/similarity continuity for the life of this one
	// call, rather than silently disabling those context sections.
	if req.Session == "" {
		req.Session = uuid.NewString()
	}

	if !a.limiter.acquire() {
		return protocol.Response{OK: false, ErrorKind: string(errs.Busy), Message: "too many in-flight requests"}
	}
	defer a.limiter.release()

	ctx, endSpan := a.startSpan(ctx, req.Op)
	defer endSpan()

	total := requestDeadline(req, cfg)
	ctx, cancel := context.WithTimeout(ctx, total)
	defer cancel()

	gitState := probeGitState(ctx, req.CWD, 50*time.Millisecond)
	key := cache.ComputeKey(req.Buffer, req.Cursor, cfg.Context.PrefixBytes, req.CWD, gitState, string(req.ShellMode))

	status, cached := a.cache.Get(key)
	switch status {
	case cache.Fresh:
		a.recordCacheStatus(ctx, "hit")
		resp := *cached
		resp.Trace = &protocol.Trace{Cache: "hit", LatencyMS: time.Since(start).Milliseconds()}
		return resp

	case cache.Stale:
		a.recordCacheStatus(ctx, "stale")
		resp := *cached
		resp.Trace = &protocol.Trace{Cache: "stale", LatencyMS: time.Since(start).Milliseconds()}
		if a.cache.TryMarkRefreshInFlight(key) {
			a.spawnRefresh(key, req, cfg)
		}
		return resp
	}

	a.recordCacheStatus(ctx, "miss")
	value, err, shared := a.cache.Singleflight(key, func() (protocol.Response, error) {
		return a.execute(ctx, req, cfg)
	})
	if shared {
		a.recordSingleflightCollapse(ctx)
	}
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return protocol.Response{OK: false, ErrorKind: string(errs.Cancelled), Message: "request cancelled"}
	}
	if err != nil {
		return a.errorResponse(err)
	}

	ttl := a.ttlFor(req, cfg)
	negative := value.Suggestion == "" && len(value.Candidates) == 0
	if negative {
		ttl = time.Duration(cfg.Cache.TTLNegativeMS) * time.Millisecond
	}
	a.cache.Store(key, value, ttl, negative, cwdHashOf(key), gitHashOf(key))

	value.Trace = &protocol.Trace{Cache: "miss", LatencyMS: time.Since(start).Milliseconds()}
	return value
}

// requestDeadline applies spec.md §4.2 step 1's request-level deadline:
// min(request.timeout, config.model.timeout_ms + gather_budget), falling
// back to the configured default when the client didn't supply timeout_ms.
func requestDeadline(req protocol.Request, cfg *config.Config) time.Duration {
	def := time.Duration(cfg.Arbiter.RequestTimeoutMS) * time.Millisecond
	if req.TimeoutMillis <= 0 {
		return def
	}
	clientTimeout := time.Duration(req.TimeoutMillis) * time.Millisecond
	modelBudget := time.Duration(cfg.Model.TimeoutMS)*time.Millisecond + time.Duration(cfg.Context.BudgetMS)*time.Millisecond
	if modelBudget < clientTimeout {
		return modelBudget
	}
	return clientTimeout
}

// spawnRefresh runs the miss path in the background with a clone of the
// request, surviving the original client's disconnection (spec.md §4.2
// step 5). Its own context is independent of the caller's.
func (a *Arbiter) spawnRefresh(key cache.Key, req protocol.Request, cfg *config.Config) {
	go func() {
		defer a.cache.ClearRefreshInFlight(key)

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Arbiter.RequestTimeoutMS)*time.Millisecond)
		defer cancel()

		value, err := a.execute(ctx, req, cfg)
		if err != nil {
			log.Debug().Err(err).Str("key", string(key)).Msg("arbiter: background refresh failed")
			return
		}
		ttl := a.ttlFor(req, cfg)
		negative := value.Suggestion == "" && len(value.Candidates) == 0
		if negative {
			ttl = time.Duration(cfg.Cache.TTLNegativeMS) * time.Millisecond
		}
		a.cache.Store(key, value, ttl, negative, cwdHashOf(key), gitHashOf(key))
	}()
}

// execute runs the gather → sanitize → connect → safety pipeline once
// (spec.md §4.2 step 4). It never returns a nil error alongside an
// incomplete Response.
func (a *Arbiter) execute(ctx context.Context, req protocol.Request, cfg *config.Config) (protocol.Response, error) {
	gatherCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Context.BudgetMS)*time.Millisecond)
	bundle := a.gatherer.Gather(gatherCtx, ctxgather.Request{
		Buffer:       req.Buffer,
		Cursor:       req.Cursor,
		CWD:          req.CWD,
		Session:      req.Session,
		ShellMode:    req.ShellMode,
		LastExitCode: req.LastExitCode,
	})
	cancel()
	// timeout(gather) is non-fatal: the partial bundle gathered so far is
	// used regardless of whether gatherCtx's deadline was hit.

	a.sanitizer.RedactBundle(bundle)
	sanitizedBuffer := a.sanitizer.Redact(req.Buffer)

	format := req.Format
	if format == "" {
		format = protocol.FormatPlain
	}

	parsed, err := a.connector.Complete(ctx, format, bundle, sanitizedBuffer, req.Cursor)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return protocol.Response{OK: true, Suggestion: ""}, nil
		}
		return protocol.Response{}, err
	}

	resp := protocol.Response{OK: true, Suggestion: parsed.Suggestion, Candidates: parsed.Candidates}
	if parsed.Warning != "" {
		w := parsed.Warning
		resp.Warning = &w
	}
	hadSuggestion := resp.Suggestion != ""
	a.safety.Apply(&resp)
	if hadSuggestion && resp.Suggestion == "" && resp.Risk == protocol.RiskDangerous {
		a.recordSafetyBlock(ctx)
	}
	return resp, nil
}

func (a *Arbiter) ttlFor(req protocol.Request, cfg *config.Config) time.Duration {
	if req.Manual {
		return time.Duration(cfg.Cache.TTLManualMS) * time.Millisecond
	}
	return time.Duration(cfg.Cache.TTLAutoMS) * time.Millisecond
}

// errorResponse maps an internal error into the closed ErrorKind taxonomy
// (spec.md §7). Unrecognized errors fall back to a generic kind rather than
// leaking internal detail.
func (a *Arbiter) errorResponse(err error) protocol.Response {
	if kind, ok := errs.KindOf(err); ok {
		return protocol.Response{OK: false, ErrorKind: string(kind), Message: err.Error()}
	}
	return protocol.Response{OK: false, ErrorKind: "internal", Message: err.Error()}
}

// gitHashOf extracts the git-hash segment already embedded in a computed
// Key, so Store's bookkeeping fields stay consistent with the key without
// recomputing the hash. Key format: "sk:v1:{prefix}:{cwd}:{git}:{mode}".
func gitHashOf(key cache.Key) string {
	parts := splitKey(string(key))
	if len(parts) < 6 {
		return ""
	}
	return parts[4]
}

// cwdHashOf extracts the cwd-hash segment already embedded in a computed
// Key (see gitHashOf).
func cwdHashOf(key cache.Key) string {
	parts := splitKey(string(key))
	if len(parts) < 6 {
		return ""
	}
	return parts[3]
}

func splitKey(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
