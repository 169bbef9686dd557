package dataset

import "sort"

// Neighbor is a space or resident at some walking distance.
type Neighbor struct {
	Key      string
	Distance float64
}

// Distances is the space by resident distance matrix. Row and column order
// follow the source table.
type Distances struct {
	spaces    []string
	residents []string
	values    map[string]map[string]float64
}

// NewDistances returns an empty matrix.
func NewDistances() *Distances {
	return &Distances{values: make(map[string]map[string]float64)}
}

// Set records the distance between a space and a resident.
func (d *Distances) Set(space, resident string, distance float64) {
	row, ok := d.values[space]
	if !ok {
		row = make(map[string]float64)
		d.values[space] = row
		d.spaces = append(d.spaces, space)
	}
	if !d.HasResident(resident) {
		d.residents = append(d.residents, resident)
	}
	row[resident] = distance
}

// Spaces lists the spaces in table order.
func (d *Distances) Spaces() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.spaces...)
}

// Residents lists the residents in column order.
func (d *Distances) Residents() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.residents...)
}

// Get returns the distance between a space and a resident.
func (d *Distances) Get(space, resident string) (float64, bool) {
	if d == nil {
		return 0, false
	}
	v, ok := d.values[space][resident]
	return v, ok
}

// HasResident reports whether any space has a distance for resident.
func (d *Distances) HasResident(resident string) bool {
	if d == nil {
		return false
	}
	for _, r := range d.residents {
		if r == resident {
			return true
		}
	}
	return false
}

// NearestSpaces returns up to n spaces closest to resident, nearest first.
// n <= 0 returns all.
func (d *Distances) NearestSpaces(resident string, n int) []Neighbor {
	if d == nil {
		return nil
	}
	var out []Neighbor
	for _, s := range d.spaces {
		if v, ok := d.values[s][resident]; ok {
			out = append(out, Neighbor{Key: s, Distance: v})
		}
	}
	return nearest(out, n)
}

// NearestResidents returns up to n residents closest to space, nearest
// first. n <= 0 returns all.
func (d *Distances) NearestResidents(space string, n int) []Neighbor {
	if d == nil {
		return nil
	}
	row := d.values[space]
	var out []Neighbor
	for _, r := range d.residents {
		if v, ok := row[r]; ok {
			out = append(out, Neighbor{Key: r, Distance: v})
		}
	}
	return nearest(out, n)
}

func nearest(in []Neighbor, n int) []Neighbor {
	sort.SliceStable(in, func(i, j int) bool { return in[i].Distance < in[j].Distance })
	if n > 0 && len(in) > n {
		in = in[:n]
	}
	return in
}
