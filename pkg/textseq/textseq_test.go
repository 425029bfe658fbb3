package textseq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []float64
	}{
		{"korean", "안녕하세요", []float64{1050504, 1045397, 1054616, 1049464, 1050836}},
		{"english", "hello", []float64{6000104, 6000101, 6000108, 6000108, 6000111}},
		{"basic latin range includes brackets", "A[z", []float64{6000065, 6000091, 6000122}},
		{"unmatched keeps code point", " 1!", []float64{32, 49, 33}},
		{"hiragana", "あ", []float64{2000000 + 0x3042}},
		{"katakana", "ア", []float64{3000000 + 0x30A2}},
		{"chinese", "中", []float64{4000000 + 0x4E2D}},
		{"russian", "Д", []float64{5000000 + 0x0414}},
		{"hebrew", "א", []float64{7000000 + 0x05D0}},
		{"vietnamese", "\u00e9", []float64{8000000 + 0xE9}},
		{"thai", "ก", []float64{9000000 + 0x0E01}},
		{"empty", "", []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Map(tt.text))
		})
	}
}

func TestMapper_Normalize(t *testing.T) {
	decomposed := "\u1112\u1161\u11ab"

	assert.Equal(t, []float64{0x1112, 0x1161, 0x11ab}, Mapper{}.Map(decomposed))
	assert.Equal(t, []float64{1000000 + 0xD55C}, Mapper{Normalize: true}.Map(decomposed))
	assert.Equal(t, Mapper{Normalize: true}.Map("\u00e9"), Mapper{Normalize: true}.Map("e\u0301"))
}

func TestBlockOf(t *testing.T) {
	b, ok := BlockOf('가')
	require.True(t, ok)
	assert.Equal(t, "korean", b.Name)

	_, ok = BlockOf('€')
	assert.False(t, ok)
}

func TestParseNumbers(t *testing.T) {
	got, err := ParseNumbers("1.5, 2.5 3.5\t-4,,5e2")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5, 3.5, -4, 500}, got)

	_, err = ParseNumbers("  , ")
	assert.ErrorIs(t, err, ErrNoNumbers)

	_, err = ParseNumbers("1 two 3")
	assert.Error(t, err)

	for _, in := range []string{"1 NaN", "inf 1 2", "1, 2, Infinity", "-inf 3 4", "+Inf 0"} {
		_, err = ParseNumbers(in)
		assert.ErrorIs(t, err, ErrNotFinite, in)
	}
}

func TestClassify(t *testing.T) {
	kind, values := Classify("1, 2, 3")
	assert.Equal(t, KindNumber, kind)
	assert.Equal(t, []float64{1, 2, 3}, values)

	kind, values = Classify("42")
	assert.Equal(t, KindText, kind)
	assert.Nil(t, values)

	kind, _ = Classify("안녕하세요")
	assert.Equal(t, KindText, kind)

	kind, values = Classify("inf 1 2")
	assert.Equal(t, KindText, kind)
	assert.Nil(t, values)
}
