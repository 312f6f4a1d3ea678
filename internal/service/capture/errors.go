package capture

import "errors"

var (
	ErrOpenFailed   = errors.New("decode session open failed")
	ErrReadFailed   = errors.New("frame read failed")
	ErrEncodeFailed = errors.New("frame encode failed")

	// ErrStop may be returned by a FrameFunc to end Run without error.
	ErrStop = errors.New("capture stopped by consumer")
)
