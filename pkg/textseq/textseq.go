// Package textseq turns user input into numeric sequences for the scorer.
package textseq

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrNoNumbers is returned when input contains no parseable numbers.
var ErrNoNumbers = errors.New("no numbers in input")

// ErrNotFinite is returned for NaN and infinite fields.
var ErrNotFinite = errors.New("not a finite number")

// Block is a Unicode range with the offset added to its code points.
type Block struct {
	Name   string
	Lo, Hi rune
	Offset float64
}

// Blocks lists the recognized ranges in lookup order. The first match wins.
var Blocks = []Block{
	{Name: "korean", Lo: 0xAC00, Hi: 0xD7AF, Offset: 1_000_000},
	{Name: "hiragana", Lo: 0x3040, Hi: 0x309F, Offset: 2_000_000},
	{Name: "katakana", Lo: 0x30A0, Hi: 0x30FF, Offset: 3_000_000},
	{Name: "chinese", Lo: 0x4E00, Hi: 0x9FFF, Offset: 4_000_000},
	{Name: "russian", Lo: 0x0410, Hi: 0x044F, Offset: 5_000_000},
	{Name: "english", Lo: 0x0041, Hi: 0x007A, Offset: 6_000_000},
	{Name: "hebrew", Lo: 0x0590, Hi: 0x05FF, Offset: 7_000_000},
	{Name: "vietnamese", Lo: 0x00C0, Hi: 0x00FD, Offset: 8_000_000},
	{Name: "thai", Lo: 0x0E00, Hi: 0x0E7F, Offset: 9_000_000},
}

// BlockOf returns the block containing r, if any.
func BlockOf(r rune) (Block, bool) {
	for _, b := range Blocks {
		if r >= b.Lo && r <= b.Hi {
			return b, true
		}
	}
	return Block{}, false
}

// Encode maps r to its code point plus its block offset (0 if unmatched).
func Encode(r rune) float64 {
	b, _ := BlockOf(r)
	return b.Offset + float64(r)
}

// Mapper converts text to code point sequences.
type Mapper struct {
	// Normalize applies NFC before mapping so precomposed and decomposed
	// Hangul or accented Latin produce the same sequence.
	Normalize bool
}

// Map returns one value per rune of text.
func (m Mapper) Map(text string) []float64 {
	if m.Normalize {
		text = norm.NFC.String(text)
	}
	out := make([]float64, 0, len(text))
	for _, r := range text {
		out = append(out, Encode(r))
	}
	return out
}

// Map converts text without normalization.
func Map(text string) []float64 {
	return Mapper{}.Map(text)
}

// ParseNumbers splits s on commas and whitespace and parses every field
// as a float.
func ParseNumbers(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return nil, ErrNoNumbers
	}

	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", f, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("parse %q: %w", f, ErrNotFinite)
		}
		values = append(values, v)
	}
	return values, nil
}

// Kind tells numeric input apart from text.
type Kind string

const (
	KindNumber Kind = "number"
	KindText   Kind = "text"
)

// Classify reports KindNumber when s parses as at least two numbers and
// KindText otherwise. For numbers the parsed values are returned.
func Classify(s string) (Kind, []float64) {
	values, err := ParseNumbers(s)
	if err != nil || len(values) < 2 {
		return KindText, nil
	}
	return KindNumber, values
}
