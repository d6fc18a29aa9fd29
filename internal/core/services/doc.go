// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The retrieval pipeline lives here: the Indexer turns transcripts into
// embedded chunks, the ContextAssembler grounds each chat turn, and the
// Dispatcher sends it down the provider failover chain.
package services
