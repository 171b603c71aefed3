// Package workflow coordinates the song pipeline: it polls the queue for
// songs without videos, drives each one through script generation, clip
// generation, stitching, and upload, and records every transition on the
// song's processing record.
package workflow
