package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// DefaultMaxQuantity is the cap above which quantities are rejected.
const DefaultMaxQuantity = 1e4

var spelledNumbers = map[string]float64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
}

var fractionRe = regexp.MustCompile(`^(\d+)\s*/\s*(\d+)$`)
var punctTrimRe = regexp.MustCompile(`^[\p{P}\s]+|[\p{P}\s]+$`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// CleanName trims, collapses internal whitespace, and strips surrounding
// punctuation. Returns "" if nothing survives.
func CleanName(raw string) string {
	s := whitespaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	s = punctTrimRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// TitleCase renders a cleaned name for display.
func TitleCase(cleaned string) string {
	words := strings.Fields(cleaned)
	for i, w := range words {
		if len(w) == 0 {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// LowerKey is the internal lowercased form used for matching and dedup keys.
func LowerKey(cleaned string) string {
	return strings.ToLower(cleaned)
}

// ParseQuantity accepts an integer, decimal, simple fraction ("1/2"), or a
// spelled number up to twenty, rejecting values <= 0 or > maxQuantity.
func ParseQuantity(raw any, maxQuantity float64) (float64, error) {
	if maxQuantity <= 0 {
		maxQuantity = DefaultMaxQuantity
	}
	var qty float64
	switch v := raw.(type) {
	case float64:
		qty = v
	case int:
		qty = float64(v)
	case int64:
		qty = float64(v)
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if n, ok := spelledNumbers[s]; ok {
			qty = n
		} else if m := fractionRe.FindStringSubmatch(s); m != nil {
			num, err1 := strconv.ParseFloat(m[1], 64)
			den, err2 := strconv.ParseFloat(m[2], 64)
			if err1 != nil || err2 != nil || den == 0 {
				return 0, fmt.Errorf("op=pipeline.parse_quantity: %w", domain.ErrSchemaInvalid)
			}
			qty = num / den
		} else {
			parsed, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, fmt.Errorf("op=pipeline.parse_quantity: %w", domain.ErrSchemaInvalid)
			}
			qty = parsed
		}
	default:
		return 0, fmt.Errorf("op=pipeline.parse_quantity: unsupported type %T: %w", raw, domain.ErrSchemaInvalid)
	}
	if qty <= 0 || qty > maxQuantity {
		return 0, fmt.Errorf("op=pipeline.parse_quantity: %v out of range (0, %v]: %w", qty, maxQuantity, domain.ErrSchemaInvalid)
	}
	return qty, nil
}

// Clean turns one provider-supplied raw item into a domain.ExtractedItem,
// applying the name/quantity/unit cleaning rules. Entries with an empty
// post-clean name, or an unparseable/out-of-range quantity, are dropped
// (nil, nil).
func Clean(raw domain.RawExtractedItem, maxQuantity float64) (*domain.ExtractedItem, error) {
	name := CleanName(raw.Name)
	if name == "" {
		return nil, nil
	}
	qty, err := ParseQuantity(raw.Quantity, maxQuantity)
	if err != nil {
		return nil, nil
	}
	unit := CanonicalUnit(raw.Unit)
	unit, qty = ConvertToCanonicalScale(unit, qty)
	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return &domain.ExtractedItem{
		RawName:    TitleCase(name),
		Quantity:   qty,
		Unit:       unit,
		Confidence: confidence,
	}, nil
}

// MergeDuplicates merges items sharing an identical (lowercased name,
// canonical unit) by summing quantities; merged confidence is the max of
// the inputs. Order of first occurrence is preserved.
func MergeDuplicates(items []domain.ExtractedItem) []domain.ExtractedItem {
	type key struct {
		name, unit string
	}
	order := make([]key, 0, len(items))
	merged := map[key]*domain.ExtractedItem{}
	for _, it := range items {
		k := key{LowerKey(it.RawName), it.Unit}
		if existing, ok := merged[k]; ok {
			existing.Quantity += it.Quantity
			if it.Confidence > existing.Confidence {
				existing.Confidence = it.Confidence
			}
			continue
		}
		cp := it
		merged[k] = &cp
		order = append(order, k)
	}
	out := make([]domain.ExtractedItem, 0, len(order))
	for _, k := range order {
		out = append(out, *merged[k])
	}
	return out
}
