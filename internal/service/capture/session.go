package capture

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Session is an open decode session against one stream URL. It is owned by the
// goroutine that opened it and must be closed on every exit path.
type Session interface {
	// FPS is the nominal rate reported by the stream, <= 0 when unknown.
	FPS() float64
	// Read decodes the next frame into dst and reports whether it succeeded.
	Read(dst *gocv.Mat) bool
	Close() error
}

// Opener starts decode sessions.
type Opener interface {
	Open(url string) (Session, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) (Session, error)

func (f OpenerFunc) Open(url string) (Session, error) { return f(url) }

// VideoOpener opens HLS URLs with gocv; OpenCV picks its FFmpeg backend for network sources.
type VideoOpener struct{}

func (VideoOpener) Open(url string) (Session, error) {
	vc, err := gocv.VideoCaptureFile(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: stream not opened", ErrOpenFailed)
	}
	return &videoSession{vc: vc}, nil
}

type videoSession struct {
	vc *gocv.VideoCapture
}

func (s *videoSession) FPS() float64 {
	return s.vc.Get(gocv.VideoCaptureFPS)
}

func (s *videoSession) Read(dst *gocv.Mat) bool {
	return s.vc.Read(dst) && !dst.Empty()
}

func (s *videoSession) Close() error {
	return s.vc.Close()
}
