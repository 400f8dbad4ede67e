package engine

import (
	"fmt"
	"sort"
)

// ChangeRange restricts the next runs to r, a half-open interval of global
// entries. It is rejected while a run is in flight.
func (g *Graph) ChangeRange(r Range) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("ChangeRange: %w: %v", ErrInvalidRange, err)
	}
	if err := g.lockBuild("ChangeRange"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	g.spec.Range = &r
	g.log.Debug("range changed", "range", r.String())
	return nil
}

// ClearRange removes the global range so runs cover every entry again.
func (g *Graph) ClearRange() error {
	if err := g.lockBuild("ClearRange"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	g.spec.Range = nil
	return nil
}

// ChangeSource swaps the dataset. The new source must provide every
// source column already read by the graph; otherwise nothing changes.
func (g *Graph) ChangeSource(spec DatasetSpec) error {
	if err := spec.validate(); err != nil {
		return fmt.Errorf("ChangeSource: %w", err)
	}
	if err := g.lockBuild("ChangeSource"); err != nil {
		return err
	}
	defer g.mu.Unlock()

	cols := columnSet(spec.Source)
	var missing []string
	for c := range g.colNodes {
		if !cols[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("ChangeSource: %w: new source lacks %v", ErrUnknownColumn, missing)
	}
	g.spec = spec
	g.columns = cols
	g.log.Debug("source changed", "partitions", len(spec.partitions()))
	return nil
}
