// Package queue holds dialogue lines waiting to be spoken.
// It keeps one FIFO lane per priority tier and the per-tier admission
// counters that decide whether a dequeued line may become active.
package queue
