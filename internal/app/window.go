package app

import "gocv.io/x/gocv"

// window displays annotated frames. Show reports whether the user asked to quit.
type window interface {
	Show(frame *gocv.Mat) bool
	Close() error
}

type gocvWindow struct {
	w *gocv.Window
}

func newWindow(name string) window {
	return &gocvWindow{w: gocv.NewWindow(name)}
}

func (g *gocvWindow) Show(frame *gocv.Mat) bool {
	g.w.IMShow(*frame)
	return g.w.WaitKey(1)&0xFF == 'q'
}

func (g *gocvWindow) Close() error {
	return g.w.Close()
}
