package acquire

import "mashup/internal/media/ffprobe"

var inspectMedia ffprobe.InspectFunc = ffprobe.Inspect

// SetProbeForTests replaces the download probe and returns a restore func.
func SetProbeForTests(fn ffprobe.InspectFunc) (restore func()) {
	prev := inspectMedia
	inspectMedia = fn
	return func() { inspectMedia = prev }
}
