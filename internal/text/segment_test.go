package text

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const narration = "The harbor woke before the sun did. Gulls argued over the nets, " +
	"and the old ferry coughed twice before it agreed to move. Nobody on the pier " +
	"noticed the girl with the red umbrella, not yet."

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func TestSegmentSingle(t *testing.T) {
	got := Segmenter{}.Segment("  hello world  ", 1)
	assert.Equal(t, []string{"hello world"}, got)
}

func TestSegmentReconstructsText(t *testing.T) {
	inputs := []string{
		narration,
		"",
		"short",
		"nospacesatallinthisverylongwordthatkeepsgoingandgoingandgoingandgoingforeverandever",
		"東京の朝は早い。電車はもう満員だ。人々は静かに画面を見つめている。外はまだ暗い。",
	}

	for _, seg := range []Segmenter{{}, {TargetChars: 40}, {TargetChars: 73}} {
		for _, in := range inputs {
			for n := 1; n <= 7; n++ {
				got := seg.Segment(in, n)
				require.Len(t, got, n)
				assert.Equal(t, stripSpace(in), stripSpace(strings.Join(got, "")),
					"target=%d n=%d", seg.TargetChars, n)
			}
		}
	}
}

func TestSegmentPrefersSentenceEnds(t *testing.T) {
	got := Segmenter{}.Segment(narration, 3)
	require.Len(t, got, 3)
	assert.True(t, strings.HasSuffix(got[1], "."), "segment %q should end on a sentence", got[1])
}

func TestSegmentFallsBackToClauseBoundary(t *testing.T) {
	in := "one two three four five six seven eight nine ten eleven twelve"
	got := Segmenter{}.Segment(in, 2)
	require.Len(t, got, 2)
	for _, s := range got {
		for _, w := range strings.Fields(s) {
			assert.Contains(t, in, w)
		}
	}
	assert.Equal(t, strings.Fields(in), strings.Fields(strings.Join(got, " ")))
}

func TestSegmentPadsWhenTextRunsOut(t *testing.T) {
	got := Segmenter{TargetChars: 73}.Segment("Just a few words.", 4)
	require.Len(t, got, 4)
	assert.Equal(t, "Just a few words.", got[0])
	assert.Equal(t, []string{"", "", ""}, got[1:])
}

func TestSegmentMultiByteMidWordCut(t *testing.T) {
	in := strings.Repeat("ж", 50)
	got := Segmenter{}.Segment(in, 3)
	require.Len(t, got, 3)
	assert.Equal(t, in, strings.Join(got, ""))
}

func TestSegmentZeroCountTreatedAsOne(t *testing.T) {
	assert.Equal(t, []string{"abc"}, Segmenter{}.Segment("abc", 0))
}
