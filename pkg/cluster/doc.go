// Package cluster holds the live state of one cluster. A State is owned by
// the reconciler and handed by reference to the single controller and ops
// executor that operate on it; everything else sees Snapshot copies.
package cluster
