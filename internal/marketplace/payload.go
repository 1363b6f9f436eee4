package marketplace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexString accepts a JSON string or number. BuiltByBit placeholders send
// ids either way depending on how the webhook body is templated.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string { return string(f) }

// Purchase is the webhook body sent by BuiltByBit.
type Purchase struct {
	Secret        string     `json:"secret"`
	UserID        flexString `json:"user_id"`
	ResourceID    flexString `json:"resource_id"`
	ResourceTitle string     `json:"resource_title,omitempty"`
	PurchaseDate  flexString `json:"purchase_date"`
	FinalPrice    flexString `json:"final_price,omitempty"`
}

// timestamp returns the purchase date as unix seconds, or 0 when absent or
// not numeric.
func (p Purchase) timestamp() int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(p.PurchaseDate.String()), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
