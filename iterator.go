package bedrockdb

import "bytes"

// Iterator iterates over the records of a key family, decoding each of them.
//
// When an error is encountered, any call to Next will return false and will
// yield no further records. The error can be queried by calling the Error
// method. Calling Release is still necessary.
//
// An iterator must be released after use, but it is not necessary to read
// an iterator until exhaustion.
type Iterator[T any] struct {
	it     cursor
	decode func(key, value []byte) (T, error)
	err    error
	key    []byte
	val    T
}

// newIterator creates an iterator over the keys of f.
func newIterator[T any](e engine, f Family, decode func(key, value []byte) (T, error)) *Iterator[T] {
	return &Iterator[T]{it: e.Scan(f.Prefix()), decode: decode}
}

// Next moves the iterator to the next record.
// It returns false if the iterator is exhausted or an error occurred.
func (iter *Iterator[T]) Next() bool {
	if iter.err != nil || iter.it == nil {
		return false
	}
	if !iter.it.Next() {
		iter.err = iter.it.Error()
		var zero T
		iter.key, iter.val = nil, zero
		return false
	}
	// Keys and values are only valid until the next call to Next.
	iter.key = bytes.Clone(iter.it.Key())
	v, err := iter.decode(iter.key, bytes.Clone(iter.it.Value()))
	if err != nil {
		iter.err = &KeyError{Key: iter.key, Err: err}
		return false
	}
	iter.val = v
	return true
}

// Key returns the key of the current record.
func (iter *Iterator[T]) Key() []byte {
	return iter.key
}

// Value returns the current record.
func (iter *Iterator[T]) Value() T {
	return iter.val
}

// Release releases resources associated with the iterator.
func (iter *Iterator[T]) Release() {
	if iter.it != nil {
		iter.it.Release()
		iter.it = nil
	}
}

// Error returns any accumulated error.
func (iter *Iterator[T]) Error() error {
	return iter.err
}

// collect drains iter, stopping at the first record that fails to decode.
func collect[T any](iter *Iterator[T]) ([]T, error) {
	defer iter.Release()
	var all []T
	for iter.Next() {
		all = append(all, iter.Value())
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return all, nil
}
