// Package audio cuts the leading clip from each acquired source and joins the
// clips into one continuous track.
//
// Trimmer never fails a batch: a source without audio yields no segment and a
// source ffmpeg cannot read is logged and skipped. Concatenator is strictly
// positional; segment offsets are prefix sums of the input order and the
// track length is their exact sum. Every segment and track owns a file on
// disk and must be released by its holder.
package audio
