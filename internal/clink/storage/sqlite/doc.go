// Package sqlite persists decode runs, per-frame summaries and accepted
// markers. It is an adapter: the pipeline reaches it only through the
// pipeline.Sink interface returned by Store.Sink.
package sqlite
