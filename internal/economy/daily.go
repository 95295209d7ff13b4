package economy

import (
	"github.com/talgya/wardsim/internal/faction"
	"github.com/talgya/wardsim/internal/territory"
	"github.com/talgya/wardsim/internal/world"
)

// Daily update tuning.
const (
	supplyLerp     = 0.10 // fraction of the gap closed per day
	prosperityLerp = 0.10

	supplyFloor = 0.1
	supplyCeil  = 3.0

	producedTarget = 2.0
	consumedTarget = 0.5
	neutralTarget  = 1.0
)

// UpdateDistrict runs the per-district daily economic step: supply
// drifts toward the district's produced/consumed lists, prosperity
// chases a composite health score, and the treasury accrues tax
// revenue for the controlling faction.
func UpdateDistrict(s *territory.State, d *world.District, ledger *territory.Ledger, roster *faction.Roster) {
	updateSupply(s, d)
	updateProsperity(s, ledger)

	taxRate := 0.0
	if ctrl := ledger.ControllingFaction(s); ctrl >= 0 {
		taxRate = roster.TaxRateOf(ledger.Factions()[ctrl])
	}
	s.Treasury += d.EconomicValue * float64(d.Population) * taxRate * (1 - s.Corruption)
}

func updateSupply(s *territory.State, d *world.District) {
	produced := make(map[string]struct{}, len(d.Produced))
	for _, g := range d.Produced {
		produced[g] = struct{}{}
	}
	consumed := make(map[string]struct{}, len(d.Consumed))
	for _, g := range d.Consumed {
		consumed[g] = struct{}{}
	}

	touch := func(good string) {
		target := neutralTarget
		if _, ok := produced[good]; ok {
			target = producedTarget
		} else if _, ok := consumed[good]; ok {
			target = consumedTarget
		}
		cur, ok := s.Supply[good]
		if !ok {
			cur = 1.0
		}
		next := cur + (target-cur)*supplyLerp
		if next < supplyFloor {
			next = supplyFloor
		}
		if next > supplyCeil {
			next = supplyCeil
		}
		s.Supply[good] = next
	}

	goods := make(map[string]struct{}, len(s.Supply)+len(produced)+len(consumed))
	for g := range s.Supply {
		goods[g] = struct{}{}
	}
	for g := range produced {
		goods[g] = struct{}{}
	}
	for g := range consumed {
		goods[g] = struct{}{}
	}
	for g := range goods {
		touch(g)
	}
}

// updateProsperity lerps prosperity toward a composite health score:
// 40% supply balance, 30% controlling faction's grip, 30% calm.
func updateProsperity(s *territory.State, ledger *territory.Ledger) {
	control, heat := 0.0, 0.0
	if ctrl := ledger.ControllingFaction(s); ctrl >= 0 {
		control = s.Control[ctrl]
		heat = s.Heat[ctrl]
	}

	health := 0.4*supplyHealth(s) + 0.3*control + 0.3*(1-heat)
	s.Prosperity += (health - s.Prosperity) * prosperityLerp
	if s.Prosperity < 0.1 {
		s.Prosperity = 0.1
	}
	if s.Prosperity > 2.0 {
		s.Prosperity = 2.0
	}
}

// supplyHealth scores the district's supply map: full marks for ratios
// inside [0.5, 1.5], falling off linearly toward 0 outside. An empty
// supply map reads as balanced.
func supplyHealth(s *territory.State) float64 {
	if len(s.Supply) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, ratio := range s.Supply {
		switch {
		case ratio >= 0.5 && ratio <= 1.5:
			sum += 1.0
		case ratio < 0.5:
			sum += ratio / 0.5
		default:
			h := 1 - (ratio-1.5)/1.5
			if h > 0 {
				sum += h
			}
		}
	}
	return sum / float64(len(s.Supply))
}
