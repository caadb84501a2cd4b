// Package dataloader holds the keyed batch helpers used when rows fetched
// by identifier sets are mapped back onto the identifiers that asked for
// them.
//
// A store answers one batched statement with rows in its own order and
// without the rows it could not find. OrderByKeys restores the order of
// the requested identifiers:
//
//	nodes, errs := dataloader.OrderByKeys(in.RootIDs, fetched, func(n *Node) any { return n.ID })
//
// GroupByKey indexes one-to-many rows, such as relationships by start node:
//
//	out := dataloader.GroupByKey(rels, func(r *Rel) any { return r.Start })
package dataloader

import "errors"

// ErrNotFound is returned for a requested key missing from a batch result.
var ErrNotFound = errors.New("dataloader: entity not found")

// KeyFunc extracts a key from a value.
type KeyFunc[K comparable, V any] func(V) K

// OrderByKeys reorders values to match keys. Missing values are reported
// as zero values with ErrNotFound at the same index.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// OrderByKeysNoError is like OrderByKeys but drops missing values.
func OrderByKeysNoError[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) []V {
	result, errs := OrderByKeys(keys, values, keyFn)
	out := result[:0]
	for i, v := range result {
		if errs[i] == nil {
			out = append(out, v)
		}
	}
	return out
}

// GroupByKey groups values by key, keeping their relative order.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}
