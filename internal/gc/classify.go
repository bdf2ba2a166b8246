package gc

import "time"

// RootSet answers whether an asset hash is referenced by a deployed
// template. *roots.Cache satisfies it.
type RootSet interface {
	Contains(hash string) bool
}

// Class is the disposition of a single asset after matching it against the
// root set and its isolation state.
type Class int

const (
	// ClassReferenced: in use and not isolated. Left alone.
	ClassReferenced Class = iota
	// ClassTaggable: unreferenced and not yet isolated. Gets an isolation
	// tag this run.
	ClassTaggable
	// ClassPending: unreferenced and isolated, but still inside the
	// rollback buffer. Left alone until the buffer elapses.
	ClassPending
	// ClassDeletable: unreferenced and isolated at least the rollback
	// buffer ago. Deleted this run.
	ClassDeletable
	// ClassUntaggable: referenced but still carrying an isolation tag,
	// typically after a rollback re-deployed the asset. The tag is removed.
	ClassUntaggable
)

// Classify determines the disposition of one asset. A zero grace means
// unreferenced assets are deletable immediately, isolated or not.
func Classify(a Asset, roots RootSet, now time.Time, grace time.Duration) Class {
	referenced := false
	for _, h := range a.Hashes() {
		if roots.Contains(h) {
			referenced = true
			break
		}
	}
	iso, isolated := a.Isolation()

	if referenced {
		if isolated {
			return ClassUntaggable
		}
		return ClassReferenced
	}
	if grace <= 0 {
		return ClassDeletable
	}
	if !isolated {
		return ClassTaggable
	}
	if now.Sub(iso.IsolatedAt) >= grace {
		return ClassDeletable
	}
	return ClassPending
}

// Classification partitions one enumerated batch by disposition.
type Classification struct {
	Referenced []Asset
	Taggable   []Asset
	Pending    []Asset
	Deletable  []Asset
	Untaggable []Asset
}

// ClassifyBatch classifies every asset in the batch.
func ClassifyBatch(batch []Asset, roots RootSet, now time.Time, grace time.Duration) Classification {
	var c Classification
	for _, a := range batch {
		switch Classify(a, roots, now, grace) {
		case ClassReferenced:
			c.Referenced = append(c.Referenced, a)
		case ClassTaggable:
			c.Taggable = append(c.Taggable, a)
		case ClassPending:
			c.Pending = append(c.Pending, a)
		case ClassDeletable:
			c.Deletable = append(c.Deletable, a)
		case ClassUntaggable:
			c.Untaggable = append(c.Untaggable, a)
		}
	}
	return c
}
