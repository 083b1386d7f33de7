package render

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repbaza/internal/model"
	"repbaza/internal/schedule"
)

func sampleDays() []Day {
	return []Day{
		{
			Date: "2026-09-01",
			Entries: []schedule.Entry{
				{Time: "11:00", Status: model.StatusFree},
				{Time: "12:00", Status: model.StatusPending, Occupied: true, Label: "Звуки Му"},
				{Time: "13:00", Status: model.StatusConfirmed, Occupied: true, Label: schedule.OccupiedLabel},
			},
		},
		{
			Date: "2026-09-02",
			Entries: []schedule.Entry{
				{Time: "11:00", Status: model.StatusFree},
			},
		},
	}
}

func TestGridDimensions(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	img, err := r.Grid(sampleDays(), false)
	require.NoError(t, err)

	// 7 columns, 2 rows, tallest day has 3 slots plus the header cell.
	wantW := gridCols*(cellWidth+padding) + padding
	wantH := gridRows*(3+1)*(cellHeight+padding) + padding
	bounds := img.Bounds()
	assert.Equal(t, wantW, bounds.Dx())
	assert.Equal(t, wantH, bounds.Dy())
}

func TestGridEmpty(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, err = r.Grid(nil, true)
	assert.Error(t, err)
}

func TestEncodePNG(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	img, err := r.Grid(sampleDays(), true)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.EncodePNG(&buf, img))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestFitLabelShrinks(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	face, size, err := r.fitLabel("Очень длинное название группы которое не помещается в ячейку")
	require.NoError(t, err)
	defer face.Close()

	assert.Less(t, size, labelFontSize)
	assert.GreaterOrEqual(t, size, minLabelSize)
}

func TestCellColor(t *testing.T) {
	free := schedule.Entry{Status: model.StatusFree}
	pending := schedule.Entry{Status: model.StatusPending, Occupied: true}
	confirmed := schedule.Entry{Status: model.StatusConfirmed, Occupied: true}

	assert.Equal(t, colorFree, cellColor(free, false))
	assert.Equal(t, colorPending, cellColor(pending, true))
	// Non-privileged viewers cannot tell pending from confirmed.
	assert.Equal(t, colorConfirmed, cellColor(pending, false))
	assert.Equal(t, colorConfirmed, cellColor(confirmed, false))
}
