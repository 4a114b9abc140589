package core

import (
	"github.com/xkilldash9x/bugscan/api/schemas"
)

// candidate is a raw finding proposal as submitted by a rule.
type candidate struct {
	kind        schemas.FindingKind
	rank        int
	location    *schemas.Location
	annotations schemas.AnnotationSet
}

// pendingAggregate accumulates a run of adjacent, structurally identical
// candidates until a different candidate arrives or the method ends.
type pendingAggregate struct {
	kind         schemas.FindingKind
	rank         int
	bestLocation *schemas.Location
	secondary    []schemas.Location
	annotations  schemas.AnnotationSet
}

func newPendingAggregate(c candidate) *pendingAggregate {
	return &pendingAggregate{
		kind:         c.kind,
		rank:         c.rank,
		bestLocation: c.location,
		annotations:  c.annotations,
	}
}

// tryMerge folds c into the aggregate when kind and evidence match exactly.
// A strictly higher rank takes over the best location; ties keep the earlier one.
func (p *pendingAggregate) tryMerge(c candidate) bool {
	if c.kind != p.kind || !c.annotations.Equal(p.annotations) {
		return false
	}
	if c.rank > p.rank {
		p.rank = c.rank
		if p.bestLocation != nil {
			p.secondary = append(p.secondary, *p.bestLocation)
		}
		p.bestLocation = c.location
	} else if c.location != nil {
		p.secondary = append(p.secondary, *c.location)
	}
	return true
}

// build finalizes the aggregate. The evidence is copied so the finding does
// not share storage with the candidate stream.
func (p *pendingAggregate) build() schemas.Finding {
	annotations := make(schemas.AnnotationSet, 0, len(p.annotations)+len(p.secondary)+1)
	annotations = append(annotations, p.annotations...)
	if p.bestLocation != nil {
		annotations = append(annotations, schemas.ForLocation(*p.bestLocation))
	}
	for _, loc := range p.secondary {
		annotations = append(annotations, schemas.ForAnotherInstance(loc))
	}
	return schemas.Finding{Kind: p.kind, Rank: p.rank, Annotations: annotations}
}

// Aggregator deduplicates the candidate stream of one method. It holds at most
// one pending aggregate, so only candidates that are adjacent in submission
// order can ever merge. It is not safe for concurrent use.
type Aggregator struct {
	pending *pendingAggregate
	emit    func(schemas.Finding)
}

// NewAggregator creates an aggregator that hands finalized findings to emit.
func NewAggregator(emit func(schemas.Finding)) *Aggregator {
	return &Aggregator{emit: emit}
}

func (a *Aggregator) add(c candidate) {
	if a.pending == nil {
		a.pending = newPendingAggregate(c)
		return
	}
	if a.pending.tryMerge(c) {
		return
	}
	a.Flush()
	a.pending = newPendingAggregate(c)
}

// Flush finalizes and emits the pending aggregate, if any.
func (a *Aggregator) Flush() {
	if a.pending == nil {
		return
	}
	f := a.pending.build()
	a.pending = nil
	a.emit(f)
}

// HasPending reports whether a candidate run is waiting to be flushed.
func (a *Aggregator) HasPending() bool {
	return a.pending != nil
}
