package migrator

import (
	"fmt"
	"sort"

	"github.com/novabot/dbupdate"
)

// Registry indexes migration units by their starting version.
//
// The registry is immutable once built and never touches the database. At most
// one unit may start at any given version, so the walk from a version is
// deterministic.
type Registry struct {
	byFrom  map[int]Unit
	highest int
}

// NewRegistry validates and indexes units. An empty registry is valid: its
// highest version is 0 and no upgrades are available.
func NewRegistry(units ...Unit) (*Registry, error) {
	r := &Registry{byFrom: make(map[int]Unit, len(units))}
	for _, u := range units {
		if err := u.Validate(); err != nil {
			return nil, err
		}
		if existing, ok := r.byFrom[u.From]; ok {
			return nil, fmt.Errorf("%w: units %s and %s both start at version %d",
				dbupdate.ErrDuplicateUnit, existing, u, u.From)
		}
		r.byFrom[u.From] = u
		if u.To > r.highest {
			r.highest = u.To
		}
	}
	return r, nil
}

// Lookup returns the unit starting at version from.
func (r *Registry) Lookup(from int) (Unit, bool) {
	u, ok := r.byFrom[from]
	return u, ok
}

// Highest returns the greatest target version of any unit, or 0 when empty.
func (r *Registry) Highest() int {
	return r.highest
}

// Len returns the number of registered units.
func (r *Registry) Len() int {
	return len(r.byFrom)
}

// Units returns every unit sorted by starting version.
func (r *Registry) Units() []Unit {
	units := make([]Unit, 0, len(r.byFrom))
	for _, u := range r.byFrom {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].From < units[j].From })
	return units
}

// Chain returns the units a walk starting at version from would apply, in
// order. The walk ends at the first version no unit starts at.
func (r *Registry) Chain(from int) []Unit {
	var chain []Unit
	v := from
	for {
		u, ok := r.byFrom[v]
		if !ok {
			return chain
		}
		chain = append(chain, u)
		v = u.To
	}
}

// ChainEnd returns the version a walk starting at from stops at.
func (r *Registry) ChainEnd(from int) int {
	v := from
	for {
		u, ok := r.byFrom[v]
		if !ok {
			return v
		}
		v = u.To
	}
}

// Gaps returns the versions below Highest at which a walk from 0 would get
// stuck, i.e. versions reachable as a target that no unit starts at.
func (r *Registry) Gaps() []int {
	var gaps []int
	for _, u := range r.byFrom {
		if u.To >= r.highest {
			continue
		}
		if _, ok := r.byFrom[u.To]; !ok {
			gaps = append(gaps, u.To)
		}
	}
	sort.Ints(gaps)
	return gaps
}
