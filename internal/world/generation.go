// District generation using layered simplex noise. Districts are laid
// out on a jittered ring so neighbors share borders without fully
// overlapping; population and economic value derive from noise fields.
package world

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds district generation parameters.
type GenConfig struct {
	Districts  int     // Number of districts to place
	WorldSize  float64 // Width/height of the square world, in tiles
	BaseRadius float64 // Mean district radius
	Seed       int64   // Deterministic seed
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Districts:  12,
		WorldSize:  512,
		BaseRadius: 72,
		Seed:       42,
	}
}

// goodPool is the set of goods districts can produce or consume.
var goodPool = []string{
	"grain", "fish", "timber", "iron_ore", "stone", "coal",
	"herbs", "furs", "tools", "weapons", "clothing", "medicine",
}

var districtNames = []string{
	"Lowmarket", "The Shambles", "Ironrow", "Dockside", "Highcourt",
	"Ashgate", "Tanner's Reach", "Old Walls", "The Warrens", "Lampblack",
	"Saltmire", "Gallows Hill", "Coppervein", "The Terraces", "Fennel Cross",
	"Wrackwater",
}

// Generate creates a deterministic district layout from the seed.
func Generate(cfg GenConfig) []*District {
	popNoise := opensimplex.NewNormalized(cfg.Seed)
	econNoise := opensimplex.NewNormalized(cfg.Seed + 1)
	goodNoise := opensimplex.NewNormalized(cfg.Seed + 2)

	center := Point{X: cfg.WorldSize / 2, Y: cfg.WorldSize / 2}
	ring := cfg.WorldSize * 0.3

	districts := make([]*District, 0, cfg.Districts)
	for i := 0; i < cfg.Districts; i++ {
		angle := 2 * math.Pi * float64(i) / float64(cfg.Districts)

		// Jitter ring distance with noise so the layout isn't a perfect circle.
		jitter := (popNoise.Eval2(math.Cos(angle)*3, math.Sin(angle)*3) - 0.5) * ring * 0.5
		dist := ring + jitter
		pos := Point{
			X: center.X + math.Cos(angle)*dist,
			Y: center.Y + math.Sin(angle)*dist,
		}

		pop := 200 + int(popNoise.Eval2(pos.X*0.01, pos.Y*0.01)*1800)
		econ := 0.5 + econNoise.Eval2(pos.X*0.01, pos.Y*0.01)*1.5

		name := fmt.Sprintf("District %d", i+1)
		if i < len(districtNames) {
			name = districtNames[i]
		}

		d := &District{
			ID:            fmt.Sprintf("district-%02d", i+1),
			Name:          name,
			Center:        pos,
			Radius:        cfg.BaseRadius * (0.8 + popNoise.Eval2(float64(i)*1.7, 0.5)*0.4),
			Population:    pop,
			EconomicValue: econ,
		}
		d.Produced, d.Consumed = pickGoods(goodNoise, i)
		districts = append(districts, d)
	}

	return districts
}

// pickGoods selects two produced and two consumed goods per district
// from independent noise samples, never overlapping.
func pickGoods(n opensimplex.Noise, idx int) (produced, consumed []string) {
	base := int(n.Eval2(float64(idx)*0.9, 1.3) * float64(len(goodPool)))
	if base >= len(goodPool) {
		base = len(goodPool) - 1
	}
	offset := 3 + int(n.Eval2(float64(idx)*0.9, 4.1)*float64(len(goodPool)-4))

	for k := 0; k < 2; k++ {
		produced = append(produced, goodPool[(base+k)%len(goodPool)])
		consumed = append(consumed, goodPool[(base+offset+k)%len(goodPool)])
	}
	return produced, consumed
}
