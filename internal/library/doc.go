// Package library is the persistence gateway between the pipeline and the
// document store. Writes pass a validation gate and land in atomic batches;
// reads are cached for a few minutes and never fail, degrading to an empty
// collection when storage is unreachable.
package library
