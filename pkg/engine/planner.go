package engine

import (
	"reflect"
	"sort"
)

// ChangeAction is the kind of change between two catalogs.
type ChangeAction string

const (
	// ChangeActionAdd indicates a directive new in the next catalog.
	ChangeActionAdd ChangeAction = "add"

	// ChangeActionRemove indicates a directive dropped from the next catalog.
	ChangeActionRemove ChangeAction = "remove"

	// ChangeActionModify indicates a directive whose desired state changed.
	ChangeActionModify ChangeAction = "modify"
)

// Change is a single directive-level difference. Secret values are
// shown redacted in Before and After.
type Change struct {
	Ref    Ref          `json:"ref"`
	Action ChangeAction `json:"action"`
	Before string       `json:"before,omitempty"`
	After  string       `json:"after,omitempty"`
}

// Refresh is a directive refreshed because a dependency changed.
type Refresh struct {
	Target Ref `json:"target"`

	// Causes are the changed directives that triggered the refresh.
	Causes []Ref `json:"causes"`
}

// ChangeSet is the difference between a previous and a next catalog.
type ChangeSet struct {
	Changes   []Change  `json:"changes"`
	Refreshes []Refresh `json:"refreshes"`

	// Execs lists the exec directives that would run when applying next.
	Execs []Ref `json:"execs"`
}

// IsEmpty reports whether the next catalog changes nothing.
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.Changes) == 0 && len(cs.Refreshes) == 0 && len(cs.Execs) == 0
}

// Refreshed reports whether ref is refreshed by the change set.
func (cs *ChangeSet) Refreshed(ref Ref) bool {
	for _, r := range cs.Refreshes {
		if r.Target == ref {
			return true
		}
	}
	return false
}

// PlanChanges compares the previous catalog with the next one. A nil
// previous catalog is treated as empty, so every directive is an add.
//
// Exec directives marked refreshonly are listed in Execs only when one of
// their subscribed (or notifying) dependencies changed; other execs are
// always listed.
func PlanChanges(prev, next *Catalog) *ChangeSet {
	if prev == nil {
		prev = &Catalog{}
	}
	if next == nil {
		next = &Catalog{}
	}

	cs := &ChangeSet{
		Changes:   make([]Change, 0),
		Refreshes: make([]Refresh, 0),
		Execs:     make([]Ref, 0),
	}
	changed := make(map[Ref]bool)

	for i := range next.Directives {
		d := &next.Directives[i]
		old, ok := prev.Find(d.Ref())
		switch {
		case !ok:
			cs.Changes = append(cs.Changes, Change{Ref: d.Ref(), Action: ChangeActionAdd, After: describe(d)})
			changed[d.Ref()] = true
		case !sameState(old, d):
			cs.Changes = append(cs.Changes, Change{
				Ref:    d.Ref(),
				Action: ChangeActionModify,
				Before: describe(old),
				After:  describe(d),
			})
			changed[d.Ref()] = true
		}
	}

	for i := range prev.Directives {
		d := &prev.Directives[i]
		if _, ok := next.Find(d.Ref()); !ok {
			cs.Changes = append(cs.Changes, Change{Ref: d.Ref(), Action: ChangeActionRemove, Before: describe(d)})
		}
	}

	causes := make(map[Ref][]Ref)
	for i := range next.Directives {
		d := &next.Directives[i]
		for _, dep := range d.Relations.Subscribe {
			if changed[dep] {
				causes[d.Ref()] = append(causes[d.Ref()], dep)
			}
		}
		if changed[d.Ref()] {
			for _, target := range d.Relations.Notify {
				causes[target] = append(causes[target], d.Ref())
			}
		}
	}

	for _, ref := range next.Refs() {
		if c, ok := causes[ref]; ok {
			sort.Slice(c, func(i, j int) bool { return c[i].String() < c[j].String() })
			cs.Refreshes = append(cs.Refreshes, Refresh{Target: ref, Causes: c})
		}
	}

	for _, d := range next.OfKind(KindExec) {
		if d.Exec.RefreshOnly && !cs.Refreshed(d.Ref()) {
			continue
		}
		cs.Execs = append(cs.Execs, d.Ref())
	}

	return cs
}

// sameState compares the desired state of two directives, ignoring relations.
func sameState(a, b *Directive) bool {
	return reflect.DeepEqual(a.Config, b.Config) &&
		reflect.DeepEqual(a.Package, b.Package) &&
		reflect.DeepEqual(a.Service, b.Service) &&
		reflect.DeepEqual(a.Exec, b.Exec)
}

// describe is a one-line rendering of the desired state.
func describe(d *Directive) string {
	switch {
	case d.Config != nil:
		return d.DisplayValue()
	case d.Package != nil:
		return d.Package.Name + "@" + d.Package.Ensure
	case d.Service != nil:
		if d.Service.Ensure == nil {
			return d.Service.Name + " (unmanaged)"
		}
		return d.Service.Name + " " + *d.Service.Ensure
	case d.Exec != nil:
		return d.Exec.Command
	default:
		return ""
	}
}
