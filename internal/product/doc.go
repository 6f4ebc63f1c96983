// Package product drives a complete spectrum build: primary header, optional
// parameter table, one section per line, and the final write.
//
// Each build gets a run ID that is stamped on every log record through the
// services context helpers. The output write holds an advisory lock on
// "<output>.lock" so two builds targeting the same path cannot interleave.
package product
