package feeds

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeKey turns a project or phase code into a trimmed string. AFAS
// returns the same code as a number in one connector and a string in another,
// so every join key goes through here.
func NormalizeKey(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(k)
	case json.Number:
		return strings.TrimSpace(k.String())
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(k), 'f', -1, 32)
	case int:
		return strconv.Itoa(k)
	case int64:
		return strconv.FormatInt(k, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(k))
	}
}

// ParseAmount converts a vendor amount into a decimal. Null is zero; anything
// that is not a number is an error. Strings may use either Dutch ("1.234,56")
// or plain ("1234.56", "1,234.56") notation: whichever of ',' and '.' comes
// last is the decimal separator and the other one groups thousands.
func ParseAmount(v any) (decimal.Decimal, error) {
	switch a := v.(type) {
	case nil:
		return decimal.Zero, nil
	case json.Number:
		return decimal.NewFromString(a.String())
	case float64:
		return decimal.NewFromFloat(a), nil
	case int:
		return decimal.NewFromInt(int64(a)), nil
	case int64:
		return decimal.NewFromInt(a), nil
	case string:
		s := strings.TrimSpace(a)
		if s == "" {
			return decimal.Zero, nil
		}
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
	}
}
