// Package journal persists the applied operation stream and the trade
// tape to a pebble database, one record per sequence number, so a
// book can be audited or rebuilt after restart.
package journal

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/quantfold/bookd/pkg/book"
)

// keys: op:<8-byte-seq>, tr:<8-byte-seq>, seq:op / seq:tr hold the
// next sequence for each stream.
var (
	opPrefix    = []byte("op:")
	tradePrefix = []byte("tr:")
	kOpSeq      = []byte("seq:op")
	kTradeSeq   = []byte("seq:tr")
)

type Journal struct {
	db       *pebble.DB
	opSeq    uint64
	tradeSeq uint64
}

func Open(path string) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := &Journal{db: db}
	if j.opSeq, err = readSeq(db, kOpSeq); err != nil {
		db.Close()
		return nil, err
	}
	if j.tradeSeq, err = readSeq(db, kTradeSeq); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// AppendOp records one applied book operation.
func (j *Journal) AppendOp(op book.Op) error {
	val, err := encodeGob(op)
	if err != nil {
		return fmt.Errorf("encode op: %w", err)
	}
	if err := j.append(opPrefix, kOpSeq, j.opSeq, val); err != nil {
		return err
	}
	j.opSeq++
	return nil
}

// AppendTrade records one trade.
func (j *Journal) AppendTrade(t book.Trade) error {
	val, err := encodeGob(t)
	if err != nil {
		return fmt.Errorf("encode trade: %w", err)
	}
	if err := j.append(tradePrefix, kTradeSeq, j.tradeSeq, val); err != nil {
		return err
	}
	j.tradeSeq++
	return nil
}

func (j *Journal) append(prefix, seqKey []byte, seq uint64, val []byte) error {
	batch := j.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(recordKey(prefix, seq), val, nil); err != nil {
		return err
	}
	if err := batch.Set(seqKey, seqBytes(seq+1), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.NoSync)
}

// Ops replays the recorded operation stream in append order.
func (j *Journal) Ops() ([]book.Op, error) {
	var out []book.Op
	err := j.scan(opPrefix, func(val []byte) error {
		var op book.Op
		if err := decodeGob(val, &op); err != nil {
			return err
		}
		out = append(out, op)
		return nil
	})
	return out, err
}

// Trades replays the recorded trade tape in append order.
func (j *Journal) Trades() ([]book.Trade, error) {
	var out []book.Trade
	err := j.scan(tradePrefix, func(val []byte) error {
		var t book.Trade
		if err := decodeGob(val, &t); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

func (j *Journal) scan(prefix []byte, fn func(val []byte) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: append(append([]byte(nil), prefix...), 0xff),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func recordKey(prefix []byte, seq uint64) []byte {
	return append(append([]byte(nil), prefix...), seqBytes(seq)...)
}

func seqBytes(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

func readSeq(db *pebble.DB, key []byte) (uint64, error) {
	val, closer, err := db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt sequence key %q", key)
	}
	return binary.BigEndian.Uint64(val), nil
}
