// Package queue persists songs and their processing records in SQLite.
//
// A song is the unit of work handed to the pipeline; a processing record is
// one attempt at producing a music video for it. Records move through a small
// status lifecycle (pending, processing, retry, completed, failed) and every
// transition is a cumulative update so a failed record still shows how far the
// attempt got.
package queue
