package api

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"arcade/models"
	"arcade/service"
)

type credentialsRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type txRequest struct {
	Amount json.RawMessage `json:"amount"`
	Game   string          `json:"game"`
}

type transferRequest struct {
	Receiver       identifier      `json:"receiver"`
	Amount         json.RawMessage `json:"amount"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// identifier accepts a JSON string or number, since receivers may be given by id
type identifier string

func (i *identifier) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*i = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*i = identifier(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*i = identifier(n.String())
	return nil
}

var decimalNumber = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// parseAmount reads an integer amount from a JSON number or numeric string.
// A missing or null amount is zero; fractions, non-decimal notation and
// magnitudes above models.MaxAmount are rejected.
func parseAmount(raw json.RawMessage) (int64, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return 0, nil
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, service.ErrInvalidAmount
		}
		text = strings.TrimSpace(s)
	}
	if !decimalNumber.MatchString(text) {
		return 0, service.ErrInvalidAmount
	}

	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		// Integral values written as 150.0 or 1e3
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > float64(models.MaxAmount) {
			return 0, service.ErrInvalidAmount
		}
		n = int64(f)
	}
	if n > models.MaxAmount || n < -models.MaxAmount {
		return 0, service.ErrInvalidAmount
	}
	return n, nil
}
