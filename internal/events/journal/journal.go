// Package journal persists broadcast events to a pebble store under
// per-stream monotonic sequence numbers, so clients can replay what
// they missed while disconnected.
package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/ugorji/go/codec"
)

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal is closed")

// Record is one journaled event. Seq is assigned by Append and is
// monotonic within its stream.
type Record struct {
	Seq     uint64                 `codec:"seq"`
	Type    string                 `codec:"type"`
	UserID  int64                  `codec:"user_id,omitempty"`
	BoomID  int64                  `codec:"boom_id,omitempty"`
	Payload map[string]interface{} `codec:"payload,omitempty"`
	At      time.Time              `codec:"at"`
}

// Journal is a pebble-backed append-only event log. Keys are
// stream-prefixed so replay iterates one stream without touching the
// others. Safe for concurrent use.
type Journal struct {
	mu     sync.Mutex
	db     *pebble.DB
	seqs   map[string]uint64
	handle codec.Handle
	closed bool
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal at %s: %w", path, err)
	}
	return &Journal{
		db:     db,
		seqs:   make(map[string]uint64),
		handle: &codec.CborHandle{},
	}, nil
}

// Close flushes and closes the underlying store.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.db.Flush(); err != nil {
		j.db.Close()
		return err
	}
	return j.db.Close()
}

// Append writes rec to the stream and returns its sequence number.
// The first record of a stream gets sequence 1.
func (j *Journal) Append(stream string, rec *Record) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}

	seq, err := j.nextSeqLocked(stream)
	if err != nil {
		return 0, err
	}
	rec.Seq = seq

	var value []byte
	if err := codec.NewEncoderBytes(&value, j.handle).Encode(rec); err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}

	if err := j.db.Set(recordKey(stream, seq), value, pebble.NoSync); err != nil {
		return 0, err
	}
	j.seqs[stream] = seq
	return seq, nil
}

// LastSeq returns the highest sequence number written to the stream,
// zero when the stream is empty.
func (j *Journal) LastSeq(stream string) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}
	next, err := j.nextSeqLocked(stream)
	if err != nil {
		return 0, err
	}
	return next - 1, nil
}

// Replay calls fn for every record of the stream with Seq >= fromSeq,
// in sequence order. Iteration stops at the first error from fn.
func (j *Journal) Replay(stream string, fromSeq uint64, fn func(*Record) error) error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return ErrClosed
	}
	db := j.db
	j.mu.Unlock()

	if fromSeq == 0 {
		fromSeq = 1
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: recordKey(stream, fromSeq),
		UpperBound: streamUpperBound(stream),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var rec Record
		if err := codec.NewDecoderBytes(iter.Value(), j.handle).Decode(&rec); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// nextSeqLocked returns the next sequence number for the stream,
// seeding from the store on first touch after open.
func (j *Journal) nextSeqLocked(stream string) (uint64, error) {
	if last, ok := j.seqs[stream]; ok {
		return last + 1, nil
	}

	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: recordKey(stream, 0),
		UpperBound: streamUpperBound(stream),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var last uint64
	if iter.Last() && iter.Valid() {
		key := iter.Key()
		if len(key) >= 8 {
			last = binary.BigEndian.Uint64(key[len(key)-8:])
		}
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	j.seqs[stream] = last
	return last + 1, nil
}

// recordKey is stream + 0x00 + big-endian seq. The separator cannot
// occur in a stream name, so prefixes never collide.
func recordKey(stream string, seq uint64) []byte {
	key := make([]byte, 0, len(stream)+9)
	key = append(key, stream...)
	key = append(key, 0x00)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}

func streamUpperBound(stream string) []byte {
	key := make([]byte, 0, len(stream)+1)
	key = append(key, stream...)
	return append(key, 0x01)
}
