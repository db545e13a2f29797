package pipeline

import "strings"

// canonicalUnits are the only unit tokens NormalizedItem/ExtractedItem ever
// carry after cleaning.
const (
	UnitKg     = "kg"
	UnitG      = "g"
	UnitL      = "l"
	UnitML     = "ml"
	UnitPiece  = "piece"
	UnitPacket = "packet"
	UnitDozen  = "dozen"
	UnitBottle = "bottle"
	UnitBox    = "box"
)

// unitAliases maps loose provider-supplied unit spellings to a canonical
// token. Unknown units normalize to "".
var unitAliases = map[string]string{
	"kg": UnitKg, "kgs": UnitKg, "kilogram": UnitKg, "kilograms": UnitKg, "kilo": UnitKg, "kilos": UnitKg,
	"g": UnitG, "gram": UnitG, "grams": UnitG, "gm": UnitG, "gms": UnitG,
	"l": UnitL, "lt": UnitL, "ltr": UnitL, "litre": UnitL, "litres": UnitL, "liter": UnitL, "liters": UnitL,
	"ml": UnitML, "millilitre": UnitML, "millilitres": UnitML, "milliliter": UnitML, "milliliters": UnitML,
	"piece": UnitPiece, "pieces": UnitPiece, "pc": UnitPiece, "pcs": UnitPiece, "unit": UnitPiece, "units": UnitPiece, "each": UnitPiece,
	"packet": UnitPacket, "packets": UnitPacket, "pack": UnitPacket, "packs": UnitPacket, "pkt": UnitPacket,
	"dozen": UnitDozen, "dozens": UnitDozen, "dz": UnitDozen,
	"bottle": UnitBottle, "bottles": UnitBottle, "btl": UnitBottle,
	"box": UnitBox, "boxes": UnitBox, "crate": UnitBox, "crates": UnitBox, "carton": UnitBox, "cartons": UnitBox,
}

// gramScale/mlScale units are converted to their kg/l equivalent during
// cleaning so downstream quantities are always expressed in the larger unit.
const (
	gramsPerKg = 1000.0
	mlPerLitre = 1000.0
)

// CanonicalUnit resolves a loose unit string to its canonical token, or ""
// if unrecognized.
func CanonicalUnit(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	return unitAliases[key]
}

// ConvertToCanonicalScale converts a (unit, quantity) pair expressed in a
// gram- or ml-scale unit to its kg/l equivalent, returning the possibly
// rewritten unit and quantity. Any other unit passes through unchanged.
func ConvertToCanonicalScale(unit string, qty float64) (string, float64) {
	switch unit {
	case UnitG:
		return UnitKg, qty / gramsPerKg
	case UnitML:
		return UnitL, qty / mlPerLitre
	default:
		return unit, qty
	}
}
