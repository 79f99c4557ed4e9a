// Command mashup builds singer mashups.
//
// Invoked with four positional arguments it runs one job synchronously:
//
//	mashup <SingerName> <NumberOfVideos> <AudioDuration> <OutputFileName>
//
// The output file extension picks the artifact: .mp3 for audio only, .mp4 for
// audio over a still background. Subcommands run the background service that
// backs the web form (serve), inspect job records (status, list), report
// readiness (check), and manage configuration (config init, config validate).
package main
