// Package delivery orchestrates turning an aggregate results bundle into one
// outbound WhatsApp report: message composition, graph-link publication,
// transport selection, bounded retries and the simulation fallback.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"reportbot/internal/graphs"
	"reportbot/internal/report"
	"reportbot/internal/storage"
	"reportbot/internal/transport"
	"reportbot/pkg/logx"
)

// Fixed message fragments. Spanish on purpose: the report audience reads the
// same wording the original tooling produced.
const (
	graphsHeader    = "Graficos del reporte:"
	graphsLocalNote = "Graficos Generados:\nLos graficos se encuentran almacenados localmente en la carpeta 'outputs/graphs'."
	graphsLocalHead = "Graficos almacenados localmente:"
	graphsNoneNote  = "No se encontraron graficos."
)

// Config is the orchestrator's immutable snapshot. It is captured at
// construction and never mutated afterwards.
type Config struct {
	// Destination is the default address; empty means unset.
	Destination string
	// Simulate forces the simulation path for every send.
	Simulate bool
	// MaxRetries is attempts per live send (>= 1).
	MaxRetries int
	// RetryWait is the blocking delay between failed attempts.
	RetryWait time.Duration

	// OutputsDir is the root for graphs and simulation records.
	OutputsDir string

	// ImgbbKey enables graph-link publication when non-empty.
	ImgbbKey        string
	ImgbbMaxImages  int
	ImgbbNamePrefix string
}

// Uploader publishes local images and returns public URLs for the successes,
// order preserved. Satisfied by *imgbb.Client.
type Uploader interface {
	UploadMany(ctx context.Context, paths []string, apiKey, namePrefix string, maxCount int) []string
}

// SendOptions are per-call overrides for SendFullReport.
type SendOptions struct {
	// Destination overrides the configured default when non-empty.
	Destination string
	// Simulate, when non-nil, overrides the configured simulate flag.
	Simulate *bool
}

type Orchestrator struct {
	cfg      Config
	live     transport.Adapter
	sim      transport.Adapter
	uploader Uploader
	store    storage.Store
	log      logx.Logger

	// now and sleep are swappable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an orchestrator. live is the configured transport; sim is the
// no-op fallback used for simulated sends and rate-limit degradation. store
// may be nil (history disabled); uploader may be nil when no image hosting
// credential is configured.
func New(cfg Config, live, sim transport.Adapter, uploader Uploader, store storage.Store, log logx.Logger) *Orchestrator {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryWait < 0 {
		cfg.RetryWait = 0
	}
	if cfg.ImgbbMaxImages <= 0 {
		cfg.ImgbbMaxImages = 6
	}
	if strings.TrimSpace(cfg.OutputsDir) == "" {
		cfg.OutputsDir = "outputs"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Orchestrator{
		cfg:      cfg,
		live:     live,
		sim:      sim,
		uploader: uploader,
		store:    store,
		log:      log,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// ComposeSummary renders the report text. Malformed input degrades to the
// fixed error literal; it never fails the send.
func (o *Orchestrator) ComposeSummary(res *report.Result) string {
	return report.Summary(res, o.now())
}

// CollectGraphReferences resolves the canonical chart files present on disk,
// in canonical order.
func (o *Orchestrator) CollectGraphReferences() []graphs.Reference {
	return graphs.Collect(graphs.Dir(o.cfg.OutputsDir))
}

// PublishGraphLinks uploads the referenced charts (first maxCount, in order)
// and returns public URLs for the successes only. Failures are skipped per
// image, never retried and never fatal.
func (o *Orchestrator) PublishGraphLinks(ctx context.Context, refs []graphs.Reference, maxCount int) []string {
	if o.uploader == nil || o.cfg.ImgbbKey == "" || len(refs) == 0 {
		return nil
	}
	paths := make([]string, len(refs))
	for i, r := range refs {
		paths[i] = r.Path
	}
	return o.uploader.UploadMany(ctx, paths, o.cfg.ImgbbKey, o.cfg.ImgbbNamePrefix, maxCount)
}

// SendWithRetry drives one message through the given transport with bounded
// retries. It returns the number of attempts made. A rate-limit signal aborts
// the loop immediately and is propagated for the caller to pattern-match;
// every other attempt error counts against the retry budget.
func (o *Orchestrator) SendWithRetry(ctx context.Context, ad transport.Adapter, msg transport.Message) (int, error) {
	var last error
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		err := ad.Send(ctx, msg)
		if err == nil {
			return attempt, nil
		}
		if errors.Is(err, transport.ErrRateLimited) {
			o.log.Warn("rate limit reached; aborting retries",
				logx.String("transport", ad.Name()),
				logx.String("to", msg.To),
				logx.Int("attempt", attempt))
			return attempt, err
		}
		last = err
		o.log.Warn("send attempt failed",
			logx.String("transport", ad.Name()),
			logx.String("to", msg.To),
			logx.Int("attempt", attempt),
			logx.Int("max", o.cfg.MaxRetries),
			logx.Err(err))
		if attempt == o.cfg.MaxRetries {
			break
		}
		if err := o.sleep(ctx, o.cfg.RetryWait); err != nil {
			return attempt, err
		}
	}
	return o.cfg.MaxRetries, fmt.Errorf("all %d attempts failed: %w", o.cfg.MaxRetries, last)
}

// SendFullReport is the top-level orchestration: resolve destination, compose
// the summary, attach graph links (or a local-storage note), and deliver via
// the configured transport — or the simulation record when simulate is active
// or the provider is rate limited.
func (o *Orchestrator) SendFullReport(ctx context.Context, res *report.Result, opts SendOptions) bool {
	dest := strings.TrimSpace(opts.Destination)
	if dest == "" {
		dest = strings.TrimSpace(o.cfg.Destination)
	}
	if dest == "" {
		// Fail fast: no transport attempt, no simulation record.
		o.log.Error("no destination configured for report delivery")
		return false
	}

	simulate := o.cfg.Simulate
	if opts.Simulate != nil {
		simulate = *opts.Simulate
	}

	start := o.now()
	body := o.ComposeSummary(res)
	refs := o.CollectGraphReferences()

	var urls []string
	if o.cfg.ImgbbKey != "" && o.graphsDirExists() {
		urls = o.PublishGraphLinks(ctx, refs, o.cfg.ImgbbMaxImages)
	}

	liveMsg := transport.Message{
		To:        dest,
		Body:      body + "\n\n" + o.graphSection(refs, urls, false),
		MediaURLs: urls,
	}

	entry := storage.DeliveryEntry{
		At:          start,
		Destination: dest,
		GraphLinks:  len(urls),
	}

	if simulate {
		ok := o.simulateSend(ctx, dest, body, refs, urls)
		entry.Transport = o.sim.Name()
		entry.Simulated = true
		entry.Attempts = 1
		entry.OK = ok
		o.record(ctx, entry, start)
		return ok
	}

	attempts, err := o.SendWithRetry(ctx, o.live, liveMsg)
	entry.Transport = o.live.Name()
	entry.Attempts = attempts
	switch {
	case err == nil:
		entry.OK = true
		o.record(ctx, entry, start)
		o.log.Info("report delivered",
			logx.String("transport", o.live.Name()),
			logx.String("to", dest),
			logx.Int("attempts", attempts))
		return true
	case errors.Is(err, transport.ErrRateLimited):
		// Presumed futile until the provider quota resets; degrade to the
		// durable simulation record so the run still leaves evidence.
		o.log.Warn("falling back to simulation after rate limit", logx.String("to", dest))
		ok := o.simulateSend(ctx, dest, body, refs, urls)
		entry.Simulated = true
		entry.OK = ok
		entry.Error = err.Error()
		o.record(ctx, entry, start)
		return ok
	default:
		entry.Error = err.Error()
		o.record(ctx, entry, start)
		o.log.Error("report delivery failed",
			logx.String("transport", o.live.Name()),
			logx.String("to", dest),
			logx.Int("attempts", attempts),
			logx.Err(err))
		return false
	}
}

func (o *Orchestrator) simulateSend(ctx context.Context, dest, body string, refs []graphs.Reference, urls []string) bool {
	msg := transport.Message{
		To:   dest,
		Body: body + "\n\n" + o.graphSection(refs, urls, true),
	}
	if err := o.sim.Send(ctx, msg); err != nil {
		o.log.Error("simulation record write failed", logx.String("to", dest), logx.Err(err))
		return false
	}
	return true
}

// graphSection renders the graph part of the message. With URLs it is a
// numbered "title: URL" list (URLs pair positionally with the references;
// partial upload failure shortens the list). Without URLs, live sends get the
// fixed local-storage note, while simulated sends list the actual file paths
// so the record preserves evidence, or the no-graphs literal.
func (o *Orchestrator) graphSection(refs []graphs.Reference, urls []string, simulated bool) string {
	if len(urls) > 0 {
		var b strings.Builder
		b.WriteString(graphsHeader)
		for i, u := range urls {
			title := "Grafico"
			if i < len(refs) {
				title = refs[i].Title
			}
			fmt.Fprintf(&b, "\n %d. %s: %s", i+1, title, u)
		}
		return b.String()
	}
	if !simulated {
		return graphsLocalNote
	}
	if len(refs) > 0 {
		var b strings.Builder
		b.WriteString(graphsLocalHead)
		for _, r := range refs {
			fmt.Fprintf(&b, "\n - %s", r.Path)
		}
		return b.String()
	}
	return graphsNoneNote
}

func (o *Orchestrator) graphsDirExists() bool {
	st, err := os.Stat(graphs.Dir(o.cfg.OutputsDir))
	return err == nil && st.IsDir()
}

// record appends the delivery entry best-effort; history never fails a send.
func (o *Orchestrator) record(ctx context.Context, e storage.DeliveryEntry, start time.Time) {
	if o.store == nil {
		return
	}
	e.TookMS = o.now().Sub(start).Milliseconds()
	if err := o.store.AppendDelivery(ctx, e); err != nil {
		o.log.Warn("delivery history append failed", logx.Err(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
