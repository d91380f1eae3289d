// Package service orchestrates the core components of the array
// engine: the copy-on-write arrays, the mutation journal, the event
// outbox, and snapshots.
//
// ArrayService is the ONLY write entry point into the system. Reads
// go straight to the arrays and stay lock-free.
package service
