// Command songreel is the CLI for the song video pipeline: it runs the
// daemon, enqueues songs, and inspects the queue and clip catalog.
package main
