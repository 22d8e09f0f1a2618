package fixtures

import (
	"image"
	"testing"

	"gocv.io/x/gocv"
)

func TestBlank(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test")
	}

	m := Blank()
	defer m.Close()

	if m.Cols() != Width || m.Rows() != Height {
		t.Errorf("size = %dx%d, want %dx%d", m.Cols(), m.Rows(), Width, Height)
	}
	if m.Channels() != 3 {
		t.Errorf("channels = %d, want 3", m.Channels())
	}
}

func TestOctagon(t *testing.T) {
	box := image.Rect(100, 100, 200, 200)
	pts := Octagon(box)

	if len(pts) != 8 {
		t.Fatalf("got %d points, want 8", len(pts))
	}
	for _, p := range pts {
		if !p.In(box.Inset(-1)) {
			t.Errorf("point %v outside %v", p, box)
		}
	}
}

func TestStopSign_DiffersFromBlank(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test")
	}

	box := image.Rect(260, 140, 380, 260)
	sign := StopSign(box)
	defer sign.Close()
	blank := Blank()
	defer blank.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(*sign, *blank, &diff)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)

	if gocv.CountNonZero(gray) == 0 {
		t.Error("stop-sign frame should differ from blank frame")
	}
}

func TestSequenceAndDecode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test")
	}

	frames := Sequence(image.Rect(260, 140, 380, 260), true, false, true)
	defer CloseAll(frames)

	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frames[0])
	if err != nil {
		t.Fatalf("IMEncode() error = %v", err)
	}
	defer buf.Close()

	decoded, err := Decode(buf.GetBytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	defer decoded.Close()

	if decoded.Cols() != Width {
		t.Errorf("decoded width = %d", decoded.Cols())
	}

	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("expected error decoding garbage")
	}
}
