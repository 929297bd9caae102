package compare

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomizedcoder/go-whep-stats/internal/recording"
	"github.com/randomizedcoder/go-whep-stats/internal/stats"
)

func buildExport(header []string, rows int, value func(col, row int) float64) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	b.WriteString("\n")
	for i := 0; i < rows; i++ {
		cells := make([]string, len(header))
		for j := range header {
			cells[j] = fmt.Sprintf("%g", value(j, i))
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteString("\n")
	}
	return b.String()
}

func TestParse(t *testing.T) {
	set, err := Parse(strings.NewReader("a,b\n1,2\n3,4.5\n"), ',')
	require.NoError(t, err)
	require.Len(t, set.Columns, 2)

	assert.Equal(t, "a", set.Columns[0].Name)
	assert.Equal(t, []float64{1, 3}, set.Columns[0].Values)
	assert.Equal(t, []float64{2, 4.5}, set.Columns[1].Values)
	assert.Equal(t, 2, set.Len())
}

func TestParse_ShortColumn(t *testing.T) {
	set, err := Parse(strings.NewReader("a;b\n1;2\n3;\n5;\n"), ';')
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 3, 5}, set.Columns[0].Values)
	assert.Equal(t, []float64{2}, set.Columns[1].Values)
	assert.Equal(t, 3, set.Len())
}

func TestParse_HeaderOnly(t *testing.T) {
	set, err := Parse(strings.NewReader("a,b\n"), ',')
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		line    int
		column  string
	}{
		{
			name:    "empty input",
			input:   "",
			wantErr: ErrMissingHeader,
			line:    1,
		},
		{
			name:   "non-numeric field",
			input:  "a,b\n1,2\n3,x\n",
			line:   3,
			column: "b",
		},
		{
			name:    "value after column ended",
			input:   "a,b\n1,\n2,3\n",
			wantErr: ErrValueAfterEnd,
			line:    3,
			column:  "b",
		},
		{
			name:  "ragged row",
			input: "a,b\n1,2\n3\n",
			line:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Parse(strings.NewReader(tt.input), ',')
			require.Error(t, err)
			assert.Nil(t, set)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
			assert.Equal(t, tt.column, pe.Column)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestAlign_LongerIsReference(t *testing.T) {
	header := []string{"video_bitrate_kbps", "packet_loss_pct"}
	a, err := Parse(strings.NewReader(buildExport(header, 100, func(c, r int) float64 {
		return float64(1000*c + r)
	})), ',')
	require.NoError(t, err)
	b, err := Parse(strings.NewReader(buildExport(header, 60, func(c, r int) float64 {
		return float64(-1000*c - r)
	})), ',')
	require.NoError(t, err)

	al := Align(a, b)
	assert.Equal(t, 100, al.ReferenceRows)
	assert.Equal(t, 60, al.OtherRows)
	assert.Equal(t, 60, al.Overlap)
	require.Len(t, al.Pairs, 2)

	for _, p := range al.Pairs {
		assert.Len(t, p.Reference, 100)
		assert.Len(t, p.Other, 60)
	}
	p, ok := al.Pair("video_bitrate_kbps")
	require.True(t, ok)
	for i := 0; i < 60; i++ {
		ref, refOK, other, otherOK := p.At(i)
		require.True(t, refOK)
		require.True(t, otherOK)
		assert.Equal(t, a.Columns[0].Values[i], ref)
		assert.Equal(t, b.Columns[0].Values[i], other)
	}
	_, _, _, otherOK := p.At(60)
	assert.False(t, otherOK)

	assert.Equal(t, al, Align(b, a))
}

func TestAlign_TieKeepsArgumentOrder(t *testing.T) {
	a := &ColumnSet{Columns: []Column{{Name: "x", Values: []float64{1, 2}}}}
	b := &ColumnSet{Columns: []Column{{Name: "x", Values: []float64{3, 4}}}}

	al := Align(a, b)
	require.Len(t, al.Pairs, 1)
	assert.Equal(t, []float64{1, 2}, al.Pairs[0].Reference)
	assert.Equal(t, []float64{3, 4}, al.Pairs[0].Other)
}

func TestAlign_OnlyCommonMetrics(t *testing.T) {
	a := &ColumnSet{Columns: []Column{
		{Name: "x", Values: []float64{1, 2, 3}},
		{Name: "y", Values: []float64{1, 2, 3}},
		{Name: "z", Values: []float64{1, 2, 3}},
	}}
	b := &ColumnSet{Columns: []Column{
		{Name: "z", Values: []float64{9}},
		{Name: "x", Values: []float64{8}},
	}}

	al := Align(a, b)
	require.Len(t, al.Pairs, 2)
	assert.Equal(t, "x", al.Pairs[0].Metric)
	assert.Equal(t, "z", al.Pairs[1].Metric)

	_, ok := al.Pair("y")
	assert.False(t, ok)
}

func TestRecordingRoundTrip(t *testing.T) {
	a := &recording.Artifact{Columns: []recording.Column{
		{Metric: stats.VideoBitrate, Values: []float64{200, 210, 190}},
		{Metric: stats.PacketLoss, Values: []float64{0.5, 1.25}},
	}}

	var buf bytes.Buffer
	require.NoError(t, a.Encode(&buf, '\t'))

	set, err := Parse(&buf, '\t')
	require.NoError(t, err)
	require.Len(t, set.Columns, 2)
	assert.Equal(t, string(stats.VideoBitrate), set.Columns[0].Name)
	assert.Equal(t, []float64{200, 210, 190}, set.Columns[0].Values)
	assert.Equal(t, []float64{0.5, 1.25}, set.Columns[1].Values)
}

func TestRender(t *testing.T) {
	a := &ColumnSet{Columns: []Column{
		{Name: "packet_loss_pct", Values: []float64{0.5, 1}},
		{Name: "custom", Values: []float64{1.5, 2}},
	}}
	b := &ColumnSet{Columns: []Column{
		{Name: "packet_loss_pct", Values: []float64{0.25}},
		{Name: "custom", Values: []float64{7}},
	}}

	var buf bytes.Buffer
	err := Render(&buf, Align(a, b), RenderOptions{Metrics: []string{"packet_loss_pct"}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "packet_loss_pct")
	assert.Contains(t, out, "0.50")
	assert.Contains(t, out, "0.25")
	assert.Contains(t, out, "-")
	assert.NotContains(t, out, "custom")
}
