// Package ffprobe runs ffprobe with its JSON writer and answers the two
// questions the pipeline asks of a media file: does it carry audio, and
// how long does that audio last.
package ffprobe
