// Package normalisers provides implementations of the Normaliser interface
// for files imported by the directory watcher. Each normaliser turns one
// file format into plain transcript text.
package normalisers
