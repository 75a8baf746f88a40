/*
paging.go - Pagination window computation

PURPOSE:
  Every list read in the engine uses the same composite offset
  descriptor: "<pageSize>-<pageIndex>-<activeOnly>". This file turns
  that descriptor into a concrete window. Pure function, no side effects.

RULES:
  pageSize == 0       => unbounded (limit = all, skip = 0)
  otherwise           => limit = pageSize*pageIndex + pageSize
                         skip  = pageSize*pageIndex
  activeOnly == 1     => Greater = now (epoch-ms cutoff for expiry filters)
  malformed / missing => return everything

EXAMPLES:
  "10-2-0" => limit 30, skip 20, greater 0
  "0-0-1"  => limit all, skip 0, greater now
  "junk"   => limit all, skip 0, greater 0
*/
package credit

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Unlimited marks a window with no upper bound.
const Unlimited = math.MaxInt

// Page is a computed list window.
type Page struct {
	Limit   int
	Skip    int
	Greater int64 // epoch-ms cutoff; 0 means no expiry filter
}

// Everything returns the window that matches all records.
func Everything() Page {
	return Page{Limit: Unlimited, Skip: 0, Greater: 0}
}

// Unbounded reports whether the window has no upper bound.
func (p Page) Unbounded() bool { return p.Limit == Unlimited }

// ParsePage computes the window for a "<pageSize>-<pageIndex>-<activeOnly>"
// descriptor. Malformed or missing descriptors return everything.
func ParsePage(descriptor string) Page {
	return ParsePageAt(descriptor, time.Now())
}

// ParsePageAt is ParsePage with an explicit clock, for deterministic tests.
func ParsePageAt(descriptor string, now time.Time) Page {
	parts := strings.Split(descriptor, "-")
	if len(parts) != 3 {
		return Everything()
	}

	size, err := strconv.Atoi(parts[0])
	if err != nil || size < 0 {
		return Everything()
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return Everything()
	}
	active, err := strconv.Atoi(parts[2])
	if err != nil {
		return Everything()
	}

	page := Everything()
	if size > 0 {
		page.Limit = size*index + size
		page.Skip = size * index
	}
	if active == 1 {
		page.Greater = now.UnixMilli()
	}
	return page
}

// Window slices n records [skip, limit). Callers that already fetched
// the full set use this to apply the computed window.
func (p Page) Window(n int) (from, to int) {
	from = p.Skip
	if from > n {
		from = n
	}
	to = n
	if !p.Unbounded() && p.Limit < n {
		to = p.Limit
	}
	if to < from {
		to = from
	}
	return from, to
}
