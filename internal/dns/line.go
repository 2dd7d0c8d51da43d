package dns

import (
	"fmt"
	"strings"
)

// Line is a canonical route line used by multi-line DNS.
type Line string

const (
	LineTelecom Line = "telecom"
	LineUnicom  Line = "unicom"
	LineMobile  Line = "mobile"
	LineOversea Line = "oversea"
	LineDefault Line = "default"
)

// Lines lists every canonical line in a stable order.
var Lines = []Line{LineTelecom, LineUnicom, LineMobile, LineOversea, LineDefault}

// ispCodes maps the short ISP codes used in configuration and by the IP
// source to canonical lines.
var ispCodes = map[string]Line{
	"CT":  LineTelecom,
	"CU":  LineUnicom,
	"CM":  LineMobile,
	"AB":  LineOversea,
	"DEF": LineDefault,
}

// Valid reports whether l is one of the five canonical lines.
func (l Line) Valid() bool {
	switch l {
	case LineTelecom, LineUnicom, LineMobile, LineOversea, LineDefault:
		return true
	}
	return false
}

// ISPCode returns the short code for l, e.g. "CT" for telecom.
func (l Line) ISPCode() string {
	for code, line := range ispCodes {
		if line == l {
			return code
		}
	}
	return ""
}

// ParseLine accepts either an ISP code ("CT") or a canonical name
// ("telecom"), case-insensitively.
func ParseLine(s string) (Line, error) {
	s = strings.TrimSpace(s)
	if l, ok := ispCodes[strings.ToUpper(s)]; ok {
		return l, nil
	}
	if l := Line(strings.ToLower(s)); l.Valid() {
		return l, nil
	}
	return "", fmt.Errorf("unknown route line %q", s)
}

// LineCodec maps canonical lines to a provider's own line tokens and back.
// Tokens it does not know are passed through unchanged in both directions.
type LineCodec struct {
	toProvider   map[Line]string
	fromProvider map[string]Line
}

// NewLineCodec builds a codec from a provider table. The table must cover
// every canonical line and must not map two lines to the same token.
func NewLineCodec(table map[Line]string) (*LineCodec, error) {
	c := &LineCodec{
		toProvider:   make(map[Line]string, len(table)),
		fromProvider: make(map[string]Line, len(table)),
	}
	for _, l := range Lines {
		token, ok := table[l]
		if !ok || token == "" {
			return nil, fmt.Errorf("line codec: no token for line %q", l)
		}
		if prev, dup := c.fromProvider[token]; dup {
			return nil, fmt.Errorf("line codec: token %q used by both %q and %q", token, prev, l)
		}
		c.toProvider[l] = token
		c.fromProvider[token] = l
	}
	return c, nil
}

// MustLineCodec is like NewLineCodec but panics on an invalid table.
// It is meant for the static tables declared by provider packages.
func MustLineCodec(table map[Line]string) *LineCodec {
	c, err := NewLineCodec(table)
	if err != nil {
		panic(err)
	}
	return c
}

// ToProvider returns the provider token for l.
func (c *LineCodec) ToProvider(l Line) string {
	if token, ok := c.toProvider[l]; ok {
		return token
	}
	return string(l)
}

// FromProvider returns the canonical line for a provider token.
func (c *LineCodec) FromProvider(token string) Line {
	if l, ok := c.fromProvider[token]; ok {
		return l
	}
	return Line(token)
}
