package cart

// Snapshot maps product identifiers to requested quantities for one session.
// The zero value is not usable; construct with New.
type Snapshot struct {
	Items map[int64]int `json:"items"`
}

func New() *Snapshot {
	return &Snapshot{Items: make(map[int64]int)}
}

// Add increments the stored quantity for productID, creating the entry if
// absent. Quantities below one are a silent no-op.
func (s *Snapshot) Add(productID int64, quantity int) {
	if quantity < 1 {
		return
	}
	s.Items[productID] += quantity
}

// Remove deletes the entry for productID if present.
func (s *Snapshot) Remove(productID int64) {
	delete(s.Items, productID)
}

// UpdateQuantity sets the quantity for an existing entry. A quantity of zero
// or less removes the entry instead.
func (s *Snapshot) UpdateQuantity(productID int64, quantity int) {
	if quantity <= 0 {
		s.Remove(productID)
		return
	}
	if _, ok := s.Items[productID]; ok {
		s.Items[productID] = quantity
	}
}

// Clear resets the snapshot to empty.
func (s *Snapshot) Clear() {
	s.Items = make(map[int64]int)
}

// ItemCount returns the total quantity across all entries.
func (s *Snapshot) ItemCount() int {
	total := 0
	for _, qty := range s.Items {
		total += qty
	}
	return total
}

// HasItems reports whether the snapshot holds at least one unit.
func (s *Snapshot) HasItems() bool {
	return s.ItemCount() > 0
}

func (s *Snapshot) Clone() *Snapshot {
	clone := New()
	for id, qty := range s.Items {
		clone.Items[id] = qty
	}
	return clone
}
