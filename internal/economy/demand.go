package economy

import "github.com/google/uuid"

// Demand multiplier clamp bounds. Many stacked events cannot push the
// combined multiplier past these.
const (
	MinDemandMultiplier = 0.2
	MaxDemandMultiplier = 5.0
)

// DemandEvent is a temporary demand shift for one item, optionally
// scoped to a district. DaysRemaining of 0 means permanent until
// explicitly removed.
type DemandEvent struct {
	ID            string  `json:"id"`
	ItemID        string  `json:"item_id"`
	Multiplier    float64 `json:"multiplier"`
	DaysRemaining int     `json:"days_remaining"`
	DistrictID    string  `json:"district_id"` // "" = global
}

// DemandEvents holds every active demand event.
type DemandEvents struct {
	events []*DemandEvent
	byID   map[string]*DemandEvent
}

// NewDemandEvents creates an empty demand event registry.
func NewDemandEvents() *DemandEvents {
	return &DemandEvents{byID: make(map[string]*DemandEvent)}
}

// Add registers an event, assigning an id if absent, and returns it.
func (d *DemandEvents) Add(e *DemandEvent) string {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if _, exists := d.byID[e.ID]; exists {
		d.Remove(e.ID)
	}
	d.events = append(d.events, e)
	d.byID[e.ID] = e
	return e.ID
}

// Remove deletes an event by id. Unknown ids are a no-op.
func (d *DemandEvents) Remove(id string) {
	if _, ok := d.byID[id]; !ok {
		return
	}
	delete(d.byID, id)
	for i, e := range d.events {
		if e.ID == id {
			d.events = append(d.events[:i], d.events[i+1:]...)
			break
		}
	}
}

// Decay ages every finite event by one day and drops the expired.
// Permanent events (DaysRemaining 0 at creation) are untouched.
func (d *DemandEvents) Decay() {
	kept := d.events[:0]
	for _, e := range d.events {
		if e.DaysRemaining > 0 {
			e.DaysRemaining--
			if e.DaysRemaining == 0 {
				delete(d.byID, e.ID)
				continue
			}
		}
		kept = append(kept, e)
	}
	d.events = kept
}

// All returns the active events.
func (d *DemandEvents) All() []*DemandEvent {
	out := make([]*DemandEvent, len(d.events))
	copy(out, d.events)
	return out
}

// Multiplier returns the combined demand multiplier for an item at a
// district. Matching events stack additively — the sum of each
// (multiplier − 1) — then clamp, so two ×2 events give ×3, not ×4,
// and heavy stacking cannot run away.
func (d *DemandEvents) Multiplier(item, districtID string) float64 {
	sum := 0.0
	for _, e := range d.events {
		if e.ItemID != item {
			continue
		}
		if e.DistrictID != "" && e.DistrictID != districtID {
			continue
		}
		sum += e.Multiplier - 1
	}

	m := 1 + sum
	if m < MinDemandMultiplier {
		return MinDemandMultiplier
	}
	if m > MaxDemandMultiplier {
		return MaxDemandMultiplier
	}
	return m
}
