package controller

import (
	"context"
	"fmt"

	"github.com/yuriy-kovalchuk/yk-cdn-dns/internal/dns"
)

// Snapshot is the live record set of one subdomain, grouped by line.
type Snapshot map[dns.Line][]dns.Record

// GroupByLine partitions records by canonical line, preserving provider
// order within each line. Records on any other line are dropped.
func GroupByLine(records []dns.Record) Snapshot {
	groups := make(Snapshot, len(dns.Lines))
	for _, rec := range records {
		if !rec.Line.Valid() {
			continue
		}
		groups[rec.Line] = append(groups[rec.Line], rec)
	}
	return groups
}

// Snapshot lists the live records of domain/subdomain and groups them by line.
func (r *Reconciler) Snapshot(ctx context.Context, domain, subdomain string) (Snapshot, error) {
	list, err := r.DNS.List(ctx, domain, subdomain, r.RecordType, r.PageSize)
	if err != nil {
		return nil, fmt.Errorf("listing %s records for %s: %w", r.RecordType, dns.FQDN(subdomain, domain), err)
	}
	if list.Total > len(list.Records) {
		r.Log.V(1).Info("provider returned a partial page", "domain", domain, "subdomain", subdomain,
			"returned", len(list.Records), "total", list.Total)
	}
	return GroupByLine(list.Records), nil
}
