package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the campaign-wide knobs an operator may override per
// deployment. Zero values fall back to Defaults.
type Tuning struct {
	// MerchantStockInfinite keeps merchant shelves stocked: a purchase
	// hands the buyer a copy and leaves the original in place.
	MerchantStockInfinite bool `yaml:"merchant_stock_infinite"`

	// CellSizePx is advertised to clients for drag previews; the server
	// never renders anything.
	CellSizePx int `yaml:"cell_size_px"`

	DefaultGridWidth  int `yaml:"default_grid_width"`
	DefaultGridHeight int `yaml:"default_grid_height"`

	LootPileGridWidth  int `yaml:"loot_pile_grid_width"`
	LootPileGridHeight int `yaml:"loot_pile_grid_height"`

	PersistTimeoutMs int `yaml:"persist_timeout_ms"`
}

func Defaults() Tuning {
	return Tuning{
		MerchantStockInfinite: true,
		CellSizePx:            48,
		DefaultGridWidth:      10,
		DefaultGridHeight:     6,
		LootPileGridWidth:     8,
		LootPileGridHeight:    8,
		PersistTimeoutMs:      10000,
	}
}

// Load reads a yaml file over the defaults, so partial files only
// override what they name.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
