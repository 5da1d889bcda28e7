// Package logstream exposes agentmux log records as a stream of timestamped
// lines.
//
// Handler wraps the process's real slog.Handler. Every record it handles is
// also rendered as a Line and published on a Broadcaster. Subscribers get a
// buffered channel; a subscriber that falls behind loses lines rather than
// slowing down request handling.
//
//	stream := logstream.NewBroadcaster()
//	logger := slog.New(logstream.NewHandler(base, stream))
//	lines, id := stream.Subscribe(ctx)
package logstream
