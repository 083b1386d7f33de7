// Package render draws the two-week schedule grid sent to chats as a photo.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"repbaza/internal/model"
	"repbaza/internal/schedule"
)

// Grid geometry. Seven columns of days, two rows, one header cell plus one
// cell per hour slot under each date.
const (
	cellWidth  = 450
	cellHeight = 70
	padding    = 10
	gridCols   = 7
	gridRows   = 2

	timeFontSize  = 26
	labelFontSize = 24
	dateFontSize  = 32
	minLabelSize  = 14

	// Labels wider than this fraction of the cell get a smaller face.
	labelWidthFrac = 0.6
)

var (
	colorFree      = color.NRGBA{200, 255, 200, 255}
	colorPending   = color.NRGBA{255, 200, 150, 255}
	colorConfirmed = color.NRGBA{255, 180, 180, 255}
	colorHeader    = color.NRGBA{220, 220, 220, 255}
	colorOutline   = color.NRGBA{0, 0, 0, 255}
)

// Day is one column of the grid.
type Day struct {
	Date    string
	Entries []schedule.Entry
}

// Renderer caches the parsed fonts between renders.
type Renderer struct {
	regular *opentype.Font
	bold    *opentype.Font
}

// NewRenderer parses the embedded Go fonts.
func NewRenderer() (*Renderer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &Renderer{regular: regular, bold: bold}, nil
}

func (r *Renderer) face(f *opentype.Font, size int) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// Grid renders up to 14 days as a 7x2 grid. For privileged viewers pending
// and confirmed cells differ in color and carry the group name; everyone
// else sees one occupied color and the masked label.
func (r *Renderer) Grid(days []Day, privileged bool) (image.Image, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("no days to render")
	}
	if len(days) > gridCols*gridRows {
		days = days[:gridCols*gridRows]
	}

	maxSlots := 1
	for _, d := range days {
		if len(d.Entries) > maxSlots {
			maxSlots = len(d.Entries)
		}
	}

	width := gridCols*(cellWidth+padding) + padding
	height := gridRows*(maxSlots+1)*(cellHeight+padding) + padding
	img := imaging.New(width, height, color.White)

	timeFace, err := r.face(r.bold, timeFontSize)
	if err != nil {
		return nil, err
	}
	defer timeFace.Close()
	dateFace, err := r.face(r.bold, dateFontSize)
	if err != nil {
		return nil, err
	}
	defer dateFace.Close()

	for i, day := range days {
		col := i % gridCols
		rowOffset := i / gridCols
		x := padding + col*(cellWidth+padding)
		top := padding + rowOffset*(maxSlots+1)*(cellHeight+padding)

		fillRect(img, x, top, cellWidth, cellHeight, colorHeader)
		drawCentered(img, dateFace, model.FormatDateHuman(day.Date), x, top)

		for j := 0; j < maxSlots; j++ {
			y := top + (j+1)*(cellHeight+padding)
			var e schedule.Entry
			if j < len(day.Entries) {
				e = day.Entries[j]
			}
			fillRect(img, x, y, cellWidth, cellHeight, cellColor(e, privileged))
			outlineRect(img, x, y, cellWidth, cellHeight)
			drawLeft(img, timeFace, e.Time, x+padding, y, timeFontSize)

			if e.Occupied && e.Label != "" {
				labelFace, size, err := r.fitLabel(e.Label)
				if err != nil {
					return nil, err
				}
				drawLeft(img, labelFace, e.Label, x+cellWidth/4+padding, y, size)
				labelFace.Close()
			}
		}
	}
	return img, nil
}

// EncodePNG writes the rendered grid as PNG.
func (r *Renderer) EncodePNG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.PNG)
}

// fitLabel shrinks the label face one point at a time until the text fits
// the cell or the floor size is reached.
func (r *Renderer) fitLabel(label string) (font.Face, int, error) {
	size := labelFontSize
	for {
		face, err := r.face(r.regular, size)
		if err != nil {
			return nil, 0, err
		}
		width := font.MeasureString(face, label).Ceil()
		if float64(width) <= cellWidth*labelWidthFrac || size <= minLabelSize {
			return face, size, nil
		}
		face.Close()
		size--
	}
}

func cellColor(e schedule.Entry, privileged bool) color.NRGBA {
	if !e.Occupied {
		return colorFree
	}
	if privileged && e.Status == model.StatusPending {
		return colorPending
	}
	return colorConfirmed
}

func fillRect(img *image.NRGBA, x, y, w, h int, c color.NRGBA) {
	draw.Draw(img, image.Rect(x, y, x+w, y+h), image.NewUniform(c), image.Point{}, draw.Src)
}

func outlineRect(img *image.NRGBA, x, y, w, h int) {
	src := image.NewUniform(colorOutline)
	draw.Draw(img, image.Rect(x, y, x+w, y+1), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(x, y+h-1, x+w, y+h), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(x, y, x+1, y+h), src, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(x+w-1, y, x+w, y+h), src, image.Point{}, draw.Src)
}

// drawLeft draws text left-aligned, vertically centered for the given
// nominal font size.
func drawLeft(img *image.NRGBA, face font.Face, text string, x, cellY, size int) {
	if text == "" {
		return
	}
	baseline := cellY + (cellHeight-size)/2 + size
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(colorOutline),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}

// drawCentered centers text both ways inside a header cell.
func drawCentered(img *image.NRGBA, face font.Face, text string, cellX, cellY int) {
	width := font.MeasureString(face, text).Ceil()
	m := face.Metrics()
	ascent := m.Ascent.Ceil()
	textHeight := ascent + m.Descent.Ceil()
	x := cellX + (cellWidth-width)/2
	baseline := cellY + (cellHeight-textHeight)/2 + ascent
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(colorOutline),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}
