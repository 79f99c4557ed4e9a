package encoding

import "mashup/internal/media/ffprobe"

var encodeProbe ffprobe.InspectFunc = ffprobe.Inspect

// SetProbeForTests replaces the output probe and returns a restore func.
func SetProbeForTests(fn ffprobe.InspectFunc) (restore func()) {
	prev := encodeProbe
	encodeProbe = fn
	return func() { encodeProbe = prev }
}
