// Package fixtures builds synthetic camera frames for tests. Frames are drawn
// with OpenCV so no image files need to ship with the repo.
package fixtures

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// Frame size matching the camera defaults.
const (
	Width  = 640
	Height = 480
)

var (
	background = gocv.NewScalar(90, 110, 100, 0)
	signRed    = color.RGBA{R: 200, G: 20, B: 30, A: 0}
	white      = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Blank returns an empty street-grey frame.
func Blank() *gocv.Mat {
	m := gocv.NewMatWithSizeFromScalar(background, Height, Width, gocv.MatTypeCV8UC3)
	return &m
}

// StopSign returns a frame with a red octagon inscribed in box.
func StopSign(box image.Rectangle) *gocv.Mat {
	m := Blank()

	pts := gocv.NewPointsVectorFromPoints([][]image.Point{Octagon(box)})
	defer pts.Close()
	gocv.FillPoly(m, pts, signRed)

	origin := image.Pt(box.Min.X+box.Dx()/8, box.Min.Y+box.Dy()*5/8)
	gocv.PutText(m, "STOP", origin, gocv.FontHersheySimplex, float64(box.Dx())/130, white, 3)

	return m
}

// Octagon returns the eight vertices of a regular octagon inscribed in box.
func Octagon(box image.Rectangle) []image.Point {
	cx := float64(box.Min.X+box.Max.X) / 2
	cy := float64(box.Min.Y+box.Max.Y) / 2
	r := math.Min(float64(box.Dx()), float64(box.Dy())) / 2

	pts := make([]image.Point, 8)
	for i := range pts {
		angle := math.Pi/8 + float64(i)*math.Pi/4
		pts[i] = image.Pt(int(cx+r*math.Cos(angle)), int(cy+r*math.Sin(angle)))
	}
	return pts
}

// Sequence returns one frame per entry: a stop-sign frame for true, blank
// for false. Callers own the frames; release them with CloseAll.
func Sequence(box image.Rectangle, hits ...bool) []*gocv.Mat {
	frames := make([]*gocv.Mat, len(hits))
	for i, hit := range hits {
		if hit {
			frames[i] = StopSign(box)
		} else {
			frames[i] = Blank()
		}
	}
	return frames
}

// CloseAll releases every frame.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		if f != nil {
			f.Close()
		}
	}
}

// Decode turns encoded image bytes (e.g. a JPEG from the stream endpoint)
// back into a frame.
func Decode(data []byte) (*gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("decode frame: empty image")
	}
	return &mat, nil
}
