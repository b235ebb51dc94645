// Package source produces the record identifiers a harvest run works on.
//
// A SolrSearcher streams the keys matching a query into a sink, one
// "bibliographicRecordId:agencyId" per line. A FileEnumerator reads such a
// file back, yielding a nil ref for every line it cannot parse so callers
// can count and skip bad entries without aborting.
package source
