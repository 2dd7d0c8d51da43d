package controller

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/config"
	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/metrics"
	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/source"
)

// ActionKind names a provider write.
type ActionKind string

const (
	ActionCreate  ActionKind = "create"
	ActionReplace ActionKind = "replace"
	ActionDelete  ActionKind = "delete"
)

// Target is the desired record count for one (domain, subdomain, line).
type Target struct {
	Domain    string
	Subdomain string
	Line      dns.Line
	Count     int
}

// Outcome is the result of one provider write, or of a planned write in dry-run mode.
type Outcome struct {
	Time     time.Time
	Target   Target
	Kind     ActionKind
	RecordID string
	Value    string
	DryRun   bool
	Err      error
}

// Report summarizes a reconciliation pass.
type Report struct {
	RunID    string
	Skipped  bool // no candidates were available
	Outcomes []Outcome
	Err      error // aggregate of every failure in the pass
}

// Failed returns the number of failed outcomes.
func (rep Report) Failed() int {
	n := 0
	for _, o := range rep.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Reconciler converges live route-line records toward the configured count.
type Reconciler struct {
	DNS            dns.Provider
	Provider       string // provider name, used in logs and metrics
	Log            logr.Logger
	Domains        *config.DomainMap
	RecordType     string
	TTL            int
	PageSize       int
	RecordsPerLine int
	DryRun         bool
	Rand           *rand.Rand       // nil uses the global source
	Metrics        *metrics.Metrics // optional
}

// NewReconciler wires a Reconciler from the loaded configuration.
func NewReconciler(log logr.Logger, provider dns.Provider, cfg *config.Config) *Reconciler {
	return &Reconciler{
		DNS:            provider,
		Provider:       cfg.Provider,
		Log:            log,
		Domains:        &cfg.Domains,
		RecordType:     cfg.RecordType,
		TTL:            cfg.TTL,
		PageSize:       cfg.PageSize,
		RecordsPerLine: cfg.RecordsPerLine,
	}
}

func (r *Reconciler) intn(n int) int {
	if r.Rand != nil {
		return r.Rand.IntN(n)
	}
	return rand.IntN(n)
}

// Run performs one reconciliation pass over every configured domain,
// subdomain, and line. Failures are isolated to their unit and collected
// in Report.Err; Run itself never stops early except on ctx cancellation.
func (r *Reconciler) Run(ctx context.Context, pools source.Pools) Report {
	rep := Report{RunID: uuid.NewString()}
	log := r.Log.WithValues("run", rep.RunID)

	if r.Metrics != nil {
		for _, l := range dns.Lines {
			r.Metrics.Candidates.WithLabelValues(string(l)).Set(float64(len(pools[l])))
		}
	}

	if pools.Empty() {
		log.Info("no candidates available, skipping run")
		rep.Skipped = true
		r.finish(&rep)
		return rep
	}

	log.Info("starting reconciliation", "provider", r.Provider, "type", r.RecordType, "recordsPerLine", r.RecordsPerLine)

	var errs []error
	for _, domain := range r.Domains.Domains() {
		for _, sub := range r.Domains.Subdomains(domain) {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				rep.Err = utilerrors.NewAggregate(errs)
				r.finish(&rep)
				return rep
			}
			outcomes, err := r.reconcileSubdomain(ctx, log, domain, sub, pools)
			rep.Outcomes = append(rep.Outcomes, outcomes...)
			if err != nil {
				log.Error(err, "reconciling subdomain failed", "domain", domain, "subdomain", sub)
				errs = append(errs, err)
			}
		}
	}

	rep.Err = utilerrors.NewAggregate(errs)
	log.Info("reconciliation finished", "actions", len(rep.Outcomes), "failed", rep.Failed())
	r.finish(&rep)
	return rep
}

func (r *Reconciler) finish(rep *Report) {
	if r.Metrics == nil {
		return
	}
	result := "success"
	switch {
	case rep.Skipped:
		result = "skipped"
	case rep.Err != nil:
		result = "error"
	}
	r.Metrics.Passes.WithLabelValues(result).Inc()
	r.Metrics.LastPass.SetToCurrentTime()
}

// reconcileSubdomain handles every configured line of one subdomain. A
// panic while listing is recovered and reported as this unit's error.
func (r *Reconciler) reconcileSubdomain(ctx context.Context, log logr.Logger, domain, sub string, pools source.Pools) (outcomes []Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error(fmt.Errorf("%v", p), "unexpected failure", "domain", domain, "subdomain", sub, "time", time.Now())
			err = fmt.Errorf("unexpected failure reconciling %s: %v", dns.FQDN(sub, domain), p)
		}
	}()

	snap, err := r.Snapshot(ctx, domain, sub)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, line := range r.Domains.Lines(domain, sub) {
		t := Target{Domain: domain, Subdomain: sub, Line: line, Count: r.RecordsPerLine}
		lineOutcomes, err := r.reconcileLineSafe(ctx, log, t, snap[line], pools[line])
		if err != nil {
			errs = append(errs, err)
		}
		for _, o := range lineOutcomes {
			if o.Err != nil {
				errs = append(errs, o.Err)
			}
		}
		outcomes = append(outcomes, lineOutcomes...)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return outcomes, utilerrors.NewAggregate(errs)
}

// reconcileLineSafe runs ReconcileLine for one line, turning a panic into
// that line's error so sibling lines still run.
func (r *Reconciler) reconcileLineSafe(ctx context.Context, log logr.Logger, t Target, current []dns.Record, pool []string) (outcomes []Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error(fmt.Errorf("%v", p), "unexpected failure", "domain", t.Domain, "subdomain", t.Subdomain, "line", t.Line)
			err = fmt.Errorf("unexpected failure reconciling %s line %s: %v", dns.FQDN(t.Subdomain, t.Domain), t.Line, p)
		}
	}()
	return r.ReconcileLine(ctx, log, t, current, pool), nil
}

// ReconcileLine converges one line toward t.Count using candidates from
// pool. With too few records it creates; with too many it replaces the
// oldest records in place. Candidates are drawn at random and a value
// already present in the group is never written twice. Both slices are
// copied and never modified.
func (r *Reconciler) ReconcileLine(ctx context.Context, log logr.Logger, t Target, current []dns.Record, pool []string) []Outcome {
	deficit := t.Count - len(current)
	log = log.WithValues("domain", t.Domain, "subdomain", t.Subdomain, "line", t.Line)
	if deficit == 0 {
		log.V(1).Info("line already at desired count", "count", t.Count)
		return nil
	}
	if len(pool) == 0 {
		log.Info("no candidates for line, leaving records untouched", "current", len(current), "desired", t.Count)
		return nil
	}

	pool = slices.Clone(pool)
	current = slices.Clone(current)
	written := sets.New[string]()

	want := deficit
	if want < 0 {
		want = -want
	}

	var outcomes []Outcome
	for done := 0; done < want && len(pool) > 0; {
		if ctx.Err() != nil {
			break
		}
		i := r.intn(len(pool))
		ip := pool[i]
		pool = slices.Delete(pool, i, i+1)

		if written.Has(ip) || slices.ContainsFunc(current, func(rec dns.Record) bool { return rec.Value == ip }) {
			log.V(1).Info("candidate already in use, skipping", "value", ip)
			continue
		}

		var o Outcome
		if deficit > 0 {
			o = r.create(ctx, t, ip)
		} else {
			old := current[0]
			current = current[1:]
			o = r.replace(ctx, t, old, ip)
		}
		r.record(log, o)
		if o.Err == nil {
			written.Insert(ip)
		}
		outcomes = append(outcomes, o)
		done++
	}
	return outcomes
}

func (r *Reconciler) create(ctx context.Context, t Target, ip string) Outcome {
	o := Outcome{Target: t, Kind: ActionCreate, Value: ip, DryRun: r.DryRun}
	if !r.DryRun {
		o.RecordID, o.Err = r.DNS.Create(ctx, t.Domain, dns.Record{
			Name:  t.Subdomain,
			Type:  r.RecordType,
			Line:  t.Line,
			Value: ip,
			TTL:   r.TTL,
		})
	}
	o.Time = time.Now()
	return o
}

func (r *Reconciler) replace(ctx context.Context, t Target, old dns.Record, ip string) Outcome {
	o := Outcome{Target: t, Kind: ActionReplace, RecordID: old.ID, Value: ip, DryRun: r.DryRun}
	if !r.DryRun {
		o.Err = r.DNS.Update(ctx, t.Domain, dns.Record{
			ID:    old.ID,
			Name:  t.Subdomain,
			Type:  r.RecordType,
			Line:  t.Line,
			Value: ip,
			TTL:   r.TTL,
		})
	}
	o.Time = time.Now()
	return o
}

// Purge deletes every record of domain/subdomain on line.
func (r *Reconciler) Purge(ctx context.Context, domain, subdomain string, line dns.Line) Report {
	rep := Report{RunID: uuid.NewString()}
	log := r.Log.WithValues("run", rep.RunID, "domain", domain, "subdomain", subdomain, "line", line)

	snap, err := r.Snapshot(ctx, domain, subdomain)
	if err != nil {
		rep.Err = err
		return rep
	}

	var errs []error
	t := Target{Domain: domain, Subdomain: subdomain, Line: line}
	for _, rec := range snap[line] {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		o := Outcome{Target: t, Kind: ActionDelete, RecordID: rec.ID, Value: rec.Value, DryRun: r.DryRun}
		if !r.DryRun {
			o.Err = r.DNS.Delete(ctx, domain, rec.ID)
		}
		o.Time = time.Now()
		r.record(log, o)
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
		rep.Outcomes = append(rep.Outcomes, o)
	}
	rep.Err = utilerrors.NewAggregate(errs)
	return rep
}

// record logs an outcome and counts it. It never changes control flow.
func (r *Reconciler) record(log logr.Logger, o Outcome) {
	kv := []interface{}{
		"action", o.Kind,
		"value", o.Value,
		"id", o.RecordID,
		"at", o.Time.Format(time.RFC3339),
	}

	result := "success"
	switch {
	case o.DryRun:
		result = "planned"
		log.Info("planned action (dry run)", kv...)
	case o.Err != nil:
		result = "failure"
		var pe *dns.ProviderError
		if errors.As(o.Err, &pe) {
			kv = append(kv, "message", pe.Message)
		}
		log.Error(o.Err, "action failed", kv...)
	default:
		log.Info("action succeeded", kv...)
	}

	if r.Metrics != nil {
		r.Metrics.Actions.WithLabelValues(r.Provider, string(o.Kind), result).Inc()
	}
}
