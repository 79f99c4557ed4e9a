// Package encoding writes the merged track into its delivery format.
//
// Audio jobs become MP3 at the configured bitrate. Video jobs pair the track
// with a static background (solid color or looped image) at a low frame rate
// so the container requirement is met without spending time on pixels. Every
// encode is probed afterwards; an unreadable or silent output is removed and
// reported as an encode failure. Nothing here retries.
package encoding
