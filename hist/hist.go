// Package hist holds the accumulators that terminal actions fill.
//
// Accumulation is commutative and associative so that per-slot partial
// results can be merged in any order once the slots have joined.
package hist

import (
	"fmt"
	"math"
	"strings"
)

// Accumulator is the sink consumed by a terminal action.
type Accumulator interface {
	// Fill adds one observation with the given weight.
	Fill(x, w float64)
	// Merge folds other into the receiver. other must be of the same kind
	// and configuration.
	Merge(other Accumulator) error
	// Clone returns a deep, independent copy.
	Clone() Accumulator
	// Empty returns a zero-state accumulator with the same configuration.
	Empty() Accumulator
}

// Scalar is implemented by accumulators that reduce to a single number.
type Scalar interface {
	Value() float64
}

func mismatch(want, got Accumulator) error {
	return fmt.Errorf("hist: cannot merge %T into %T", got, want)
}

// Sum accumulates sum(w*x).
type Sum struct {
	Total float64
}

func (s *Sum) Fill(x, w float64) { s.Total += x * w }

func (s *Sum) Merge(other Accumulator) error {
	o, ok := other.(*Sum)
	if !ok {
		return mismatch(s, other)
	}
	s.Total += o.Total
	return nil
}

func (s *Sum) Clone() Accumulator { c := *s; return &c }
func (s *Sum) Empty() Accumulator { return &Sum{} }
func (s *Sum) Value() float64     { return s.Total }
func (s *Sum) String() string     { return fmt.Sprintf("%g", s.Total) }

// Count accumulates the number of fills and the sum of their weights.
type Count struct {
	Entries int64
	SumW    float64
}

func (c *Count) Fill(_, w float64) {
	c.Entries++
	c.SumW += w
}

func (c *Count) Merge(other Accumulator) error {
	o, ok := other.(*Count)
	if !ok {
		return mismatch(c, other)
	}
	c.Entries += o.Entries
	c.SumW += o.SumW
	return nil
}

func (c *Count) Clone() Accumulator { cp := *c; return &cp }
func (c *Count) Empty() Accumulator { return &Count{} }
func (c *Count) Value() float64     { return float64(c.Entries) }
func (c *Count) String() string     { return fmt.Sprintf("%d", c.Entries) }

// Mean accumulates a weighted mean.
type Mean struct {
	SumW  float64
	SumWX float64
}

func (m *Mean) Fill(x, w float64) {
	m.SumW += w
	m.SumWX += w * x
}

func (m *Mean) Merge(other Accumulator) error {
	o, ok := other.(*Mean)
	if !ok {
		return mismatch(m, other)
	}
	m.SumW += o.SumW
	m.SumWX += o.SumWX
	return nil
}

func (m *Mean) Clone() Accumulator { cp := *m; return &cp }
func (m *Mean) Empty() Accumulator { return &Mean{} }

// Value returns NaN when nothing was filled.
func (m *Mean) Value() float64 {
	if m.SumW == 0 {
		return math.NaN()
	}
	return m.SumWX / m.SumW
}

func (m *Mean) String() string { return fmt.Sprintf("%g", m.Value()) }

// Model describes a fixed-binning one-dimensional histogram.
type Model struct {
	Name  string
	Title string
	Bins  int
	Lo    float64
	Hi    float64
}

// Validate reports whether the binning is usable.
func (m Model) Validate() error {
	if m.Bins < 1 {
		return fmt.Errorf("hist: %q needs at least one bin, got %d", m.Name, m.Bins)
	}
	if !(m.Lo < m.Hi) {
		return fmt.Errorf("hist: %q has empty axis [%g, %g)", m.Name, m.Lo, m.Hi)
	}
	return nil
}

// H1 is a fixed-binning histogram. Counts[0] is the underflow bin and
// Counts[Bins+1] the overflow bin.
type H1 struct {
	Model   Model
	Counts  []float64
	SumW2   []float64
	Entries int64
}

// NewH1 creates an empty histogram for the model.
func NewH1(m Model) (*H1, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &H1{
		Model:  m,
		Counts: make([]float64, m.Bins+2),
		SumW2:  make([]float64, m.Bins+2),
	}, nil
}

// FindBin returns the storage index for x, including under/overflow.
func (h *H1) FindBin(x float64) int {
	switch {
	case math.IsNaN(x) || x < h.Model.Lo:
		return 0
	case x >= h.Model.Hi:
		return h.Model.Bins + 1
	}
	width := (h.Model.Hi - h.Model.Lo) / float64(h.Model.Bins)
	bin := int((x-h.Model.Lo)/width) + 1
	if bin > h.Model.Bins {
		bin = h.Model.Bins
	}
	return bin
}

func (h *H1) Fill(x, w float64) {
	b := h.FindBin(x)
	h.Counts[b] += w
	h.SumW2[b] += w * w
	h.Entries++
}

func (h *H1) Merge(other Accumulator) error {
	o, ok := other.(*H1)
	if !ok {
		return mismatch(h, other)
	}
	if o.Model.Bins != h.Model.Bins || o.Model.Lo != h.Model.Lo || o.Model.Hi != h.Model.Hi {
		return fmt.Errorf("hist: cannot merge %q into %q: binning differs", o.Model.Name, h.Model.Name)
	}
	for i := range h.Counts {
		h.Counts[i] += o.Counts[i]
		h.SumW2[i] += o.SumW2[i]
	}
	h.Entries += o.Entries
	return nil
}

func (h *H1) Clone() Accumulator {
	cp := &H1{
		Model:   h.Model,
		Counts:  make([]float64, len(h.Counts)),
		SumW2:   make([]float64, len(h.SumW2)),
		Entries: h.Entries,
	}
	copy(cp.Counts, h.Counts)
	copy(cp.SumW2, h.SumW2)
	return cp
}

func (h *H1) Empty() Accumulator {
	return &H1{
		Model:  h.Model,
		Counts: make([]float64, len(h.Counts)),
		SumW2:  make([]float64, len(h.SumW2)),
	}
}

// Integral returns the sum of weights in the in-range bins.
func (h *H1) Integral() float64 {
	var total float64
	for _, c := range h.Counts[1 : h.Model.Bins+1] {
		total += c
	}
	return total
}

// Value makes H1 a Scalar through its integral.
func (h *H1) Value() float64 { return h.Integral() }

// BinLow returns the lower edge of in-range bin i (1-based).
func (h *H1) BinLow(i int) float64 {
	width := (h.Model.Hi - h.Model.Lo) / float64(h.Model.Bins)
	return h.Model.Lo + float64(i-1)*width
}

func (h *H1) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s entries=%d integral=%g", h.Model.Name, h.Entries, h.Integral())
	return sb.String()
}
