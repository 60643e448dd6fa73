package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	WeightNormal = "normal"
	WeightBold   = "bold"

	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// styleKeys are the JSON names of the typed Style fields. Extra never
// holds them.
var styleKeys = map[string]bool{
	"fontSize":   true,
	"fontFamily": true,
	"color":      true,
	"fontWeight": true,
	"textAlign":  true,
}

// Style holds the presentation attributes of a text or field element.
// Keys outside the known set are kept in Extra and written back flat, so
// documents produced by newer editors survive a round trip.
type Style struct {
	FontSize   float64
	FontFamily string
	Color      string
	FontWeight string
	TextAlign  string
	Extra      map[string]any
}

// DefaultStyle is applied to new text and field elements.
func DefaultStyle() Style {
	return Style{
		FontSize:   14,
		FontFamily: "Arial",
		Color:      "#000000",
		FontWeight: WeightNormal,
		TextAlign:  AlignCenter,
	}
}

// Clone returns a deep copy.
func (s Style) Clone() Style {
	out := s
	if s.Extra != nil {
		out.Extra = make(map[string]any, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// ExtraString returns an extension attribute as a string.
func (s *Style) ExtraString(key string) string {
	if s == nil || s.Extra == nil {
		return ""
	}
	if v, ok := s.Extra[key].(string); ok {
		return v
	}
	return ""
}

// StylePatch is a partial style update. Nil fields are left unchanged;
// Extra keys are merged one by one and a nil value deletes the key. Extra
// entries named like a typed field are ignored.
type StylePatch struct {
	FontSize   *float64
	FontFamily *string
	Color      *string
	FontWeight *string
	TextAlign  *string
	Extra      map[string]any
}

// Merge applies p onto s.
func (s *Style) Merge(p StylePatch) {
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
	if p.FontFamily != nil {
		s.FontFamily = *p.FontFamily
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.FontWeight != nil {
		s.FontWeight = *p.FontWeight
	}
	if p.TextAlign != nil {
		s.TextAlign = *p.TextAlign
	}
	for k, v := range p.Extra {
		if styleKeys[k] {
			continue
		}
		if v == nil {
			delete(s.Extra, k)
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]any)
		}
		s.Extra[k] = v
	}
}

func (s Style) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+5)
	for k, v := range s.Extra {
		if !styleKeys[k] {
			out[k] = v
		}
	}
	if s.FontSize != 0 {
		out["fontSize"] = s.FontSize
	}
	if s.FontFamily != "" {
		out["fontFamily"] = s.FontFamily
	}
	if s.Color != "" {
		out["color"] = s.Color
	}
	if s.FontWeight != "" {
		out["fontWeight"] = s.FontWeight
	}
	if s.TextAlign != "" {
		out["textAlign"] = s.TextAlign
	}
	return json.Marshal(out)
}

func (s *Style) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Style{}
	for key, value := range raw {
		var err error
		switch key {
		case "fontSize":
			s.FontSize, err = parseFontSize(value)
		case "fontFamily":
			err = json.Unmarshal(value, &s.FontFamily)
		case "color":
			err = json.Unmarshal(value, &s.Color)
		case "fontWeight":
			s.FontWeight, err = parseWeight(value)
		case "textAlign":
			err = json.Unmarshal(value, &s.TextAlign)
		default:
			var v any
			if err = json.Unmarshal(value, &v); err == nil {
				if s.Extra == nil {
					s.Extra = make(map[string]any)
				}
				s.Extra[key] = v
			}
		}
		if err != nil {
			return fmt.Errorf("style.%s: %w", key, err)
		}
	}
	return nil
}

// parseFontSize accepts 14, "14" and "14px".
func parseFontSize(raw json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, err
	}
	str = strings.TrimSuffix(strings.TrimSpace(str), "px")
	if str == "" {
		return 0, nil
	}
	return strconv.ParseFloat(str, 64)
}

// parseWeight maps numeric CSS weights onto normal/bold.
func parseWeight(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if str == "700" {
			return WeightBold, nil
		}
		if str == "400" {
			return WeightNormal, nil
		}
		return str, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if n >= 600 {
		return WeightBold, nil
	}
	return WeightNormal, nil
}
