// Package omnhash implements the incremental, resumable MD5 hash §4.1 of
// the specification requires: update/digest plus a serializable internal
// state that lets a WriteStream resume hashing on append without
// rereading the bytes already committed.
package omnhash

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Digest is the result of finalizing a Hash: the lowercase hex value and
// the internal state snapshot taken immediately before the terminal
// transform, so a caller holding Digest.State can seed a new Hash that
// behaves as if update had never stopped.
type Digest struct {
	Value string
	State []byte
}

// Hash is the capability set §4.1 names: new(seed?), update(bytes),
// digest() -> {value, state}. The concrete algorithm is MD5.
type Hash struct {
	h        md5Marshalable
	finished bool
}

// md5Marshalable is satisfied by the stdlib md5 hash, which implements
// encoding.BinaryMarshaler/Unmarshaler as of Go 1.x — the mechanism this
// package leans on for resumable state instead of hand-rolling MD5's
// internal block/length bookkeeping.
type md5Marshalable interface {
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
	Reset()
	MarshalBinary() (data []byte, err error)
	UnmarshalBinary(data []byte) error
}

// New creates a fresh Hash with no prior state.
func New() *Hash {
	return &Hash{h: md5.New().(md5Marshalable)}
}

// Resume reconstructs a Hash from a previously captured Digest.State so
// that subsequent Update calls behave as if applied to the original
// stream (§4.1, §3 "md5_state").
func Resume(state []byte) (*Hash, error) {
	h := md5.New().(md5Marshalable)
	if len(state) > 0 {
		if err := h.UnmarshalBinary(state); err != nil {
			return nil, fmt.Errorf("omnhash: invalid resume state: %w", err)
		}
	}
	return &Hash{h: h}, nil
}

// Update feeds bytes into the hash. It is an error to call Update after
// Digest has been called once — digest is terminal (§4.1: "callable once
// per finalisation").
func (h *Hash) Update(p []byte) error {
	if h.finished {
		return fmt.Errorf("omnhash: update after digest")
	}
	if len(p) == 0 {
		return nil
	}
	_, err := h.h.Write(p)
	return err
}

// Digest finalizes the hash, snapshotting State before applying MD5's
// terminal padding/length transform, then computes Value. It is safe to
// call at most once.
func (h *Hash) Digest() (Digest, error) {
	if h.finished {
		return Digest{}, fmt.Errorf("omnhash: digest called twice")
	}

	state, err := h.h.MarshalBinary()
	if err != nil {
		return Digest{}, fmt.Errorf("omnhash: snapshot state: %w", err)
	}

	sum := h.h.Sum(nil)
	h.finished = true

	return Digest{
		Value: hex.EncodeToString(sum),
		State: state,
	}, nil
}

// State snapshots the current internal state without finalizing the hash,
// for callers that need a resumable checkpoint mid-stream. WriteStream
// does not use it; it persists Digest.State taken at Close instead.
func (h *Hash) State() ([]byte, error) {
	if h.finished {
		return nil, fmt.Errorf("omnhash: state after digest")
	}
	return h.h.MarshalBinary()
}
