package detect

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/R204570/LexAudit-Flow/internal/model"
)

type payload struct {
	ChangeDetected *bool           `json:"change_detected"`
	Detected       *bool           `json:"detected"`
	Item           string          `json:"item"`
	NewVal         json.RawMessage `json:"new_val"`
	Quote          string          `json:"quote"`
}

// ParseVerdict interprets raw oracle output. The JSON object is taken from
// the first '{' to the last '}', or the whole text when there are no
// braces. Anything that does not fit the expected shape is Unparseable.
func ParseVerdict(raw string) model.Verdict {
	unparseable := func(reason string) model.Verdict {
		return model.Verdict{Kind: model.VerdictUnparseable, Raw: raw, Reason: reason}
	}

	body := strings.TrimSpace(raw)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start != -1 && end > start {
		body = body[start : end+1]
	}

	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return unparseable("invalid json: " + err.Error())
	}

	flag := p.ChangeDetected
	if flag == nil {
		flag = p.Detected
	}
	if flag == nil {
		return unparseable("missing change_detected")
	}
	if !*flag {
		return model.Verdict{Kind: model.VerdictNoChange, Raw: raw}
	}

	item := strings.TrimSpace(p.Item)
	if item == "" {
		return unparseable("positive verdict without item")
	}
	rate, ok := parseRate(p.NewVal)
	if !ok {
		return unparseable("positive verdict without numeric new_val")
	}
	return model.Verdict{
		Kind:   model.VerdictChange,
		Change: &model.Change{Item: item, Rate: rate, Quote: strings.TrimSpace(p.Quote)},
		Raw:    raw,
	}
}

// parseRate accepts a JSON number or a string such as "12", "12.5%" or
// "12 %".
func parseRate(v json.RawMessage) (float64, bool) {
	if len(v) == 0 || string(v) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		if f, err = strconv.ParseFloat(s, 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}
