// Package level implements the AV1 Annex A level table, the minimum
// compression ratio model, and selection of the lowest level that fits an
// observed SequenceContext.
package level
