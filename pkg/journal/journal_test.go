package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantfold/bookd/pkg/book"
)

func TestAppendAndReplay(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	j, err := Open(dir)
	require.NoError(t, err)
	defer j.Close()

	ops := []book.Op{
		{Kind: book.OpAdd, Order: book.Order{ID: 1, Side: book.Buy, Price: 100, Qty: 10}},
		{Kind: book.OpModify, Order: book.Order{ID: 1, Side: book.Buy, Price: 100}, NewQty: 4},
		{Kind: book.OpCancel, Order: book.Order{ID: 1, Side: book.Buy, Price: 100}},
	}
	for _, op := range ops {
		require.NoError(t, j.AppendOp(op))
	}
	require.NoError(t, j.AppendTrade(book.Trade{ID: 9, Price: 101, Qty: 3, Timestamp: 5, BuyOrderID: 1, SellOrderID: 2}))

	got, err := j.Ops()
	require.NoError(t, err)
	require.Equal(t, ops, got)

	trades, err := j.Trades()
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, uint64(9), trades[0].ID)
}

func TestSequencesSurviveReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")

	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.AppendOp(book.Op{Kind: book.OpAdd, Order: book.Order{ID: 1, Side: book.Buy, Price: 100, Qty: 1}}))
	require.NoError(t, j.AppendOp(book.Op{Kind: book.OpAdd, Order: book.Order{ID: 2, Side: book.Buy, Price: 100, Qty: 1}}))
	require.NoError(t, j.Close())

	j, err = Open(dir)
	require.NoError(t, err)
	defer j.Close()
	require.NoError(t, j.AppendOp(book.Op{Kind: book.OpAdd, Order: book.Order{ID: 3, Side: book.Buy, Price: 100, Qty: 1}}))

	ops, err := j.Ops()
	require.NoError(t, err)
	require.Len(t, ops, 3)
	for i, op := range ops {
		require.Equal(t, uint64(i+1), op.Order.ID, "append order lost across reopen")
	}
}

func TestEmptyJournalReplaysNothing(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	defer j.Close()

	ops, err := j.Ops()
	require.NoError(t, err)
	require.Empty(t, ops)

	trades, err := j.Trades()
	require.NoError(t, err)
	require.Empty(t, trades)
}
