package index

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainscreen/internal/canonical"
	"chainscreen/internal/list"
	"chainscreen/pkg/domain"
	"chainscreen/pkg/requestcontext"
)

const tornadoETH = "0x7F367cc41522cE07553e823bf3be79A889DEbe1B"

func mustAddress(t *testing.T, chain canonical.Chain, raw string) canonical.Address {
	t.Helper()
	addr, err := canonical.NewAddress(chain, raw)
	require.NoError(t, err)
	return addr
}

func TestBuildAndLookup(t *testing.T) {
	v1 := &list.ListVersion{ID: domain.NewVersionID(), Source: list.SourceOFACSDN}
	v2 := &list.ListVersion{ID: domain.NewVersionID(), Source: list.SourceUNConsolidated}

	eth := mustAddress(t, canonical.ChainEthereum, tornadoETH)
	btc := mustAddress(t, canonical.ChainBitcoin, "149w62rY42aZBox8fGcmqNsXUzSStKeq8C")

	entries := []list.Entry{
		{VersionID: v1.ID, Address: eth, EntityUID: "30518", EntityName: "TORNADO CASH", Program: "CYBER2"},
		{VersionID: v2.ID, Address: eth, EntityUID: "un-1", EntityName: "TORNADO CASH", Program: "UN"},
		{VersionID: v1.ID, Address: btc, EntityUID: "26348", EntityName: "Ali KHORASHADIZADEH", Program: "CYBER2"},
	}

	idx := Build([]*list.ListVersion{v1, v2}, entries, time.Now())
	assert.Equal(t, 2, idx.Size())

	match := idx.Lookup(eth)
	require.NotNil(t, match)
	assert.Equal(t, "30518", match.EntityUID, "first contributing version wins the entity")
	assert.Len(t, match.VersionIDs, 2, "both versions recorded as contributing")

	t.Run("lookup is exact on chain", func(t *testing.T) {
		// The same hex string on a different EVM chain is a different key.
		arb := mustAddress(t, canonical.ChainArbitrum, tornadoETH)
		assert.Nil(t, idx.Lookup(arb))
	})

	t.Run("unlisted address misses", func(t *testing.T) {
		other := mustAddress(t, canonical.ChainEthereum, "0x0000000000000000000000000000000000000001")
		assert.Nil(t, idx.Lookup(other))
	})
}

func TestBuildDeterministic(t *testing.T) {
	v := &list.ListVersion{ID: domain.NewVersionID(), Source: list.SourceOFACSDN}
	eth := mustAddress(t, canonical.ChainEthereum, tornadoETH)
	entries := []list.Entry{
		{VersionID: v.ID, Address: eth, EntityUID: "30518", EntityName: "TORNADO CASH"},
	}

	a := Build([]*list.ListVersion{v}, entries, time.Unix(0, 0))
	b := Build([]*list.ListVersion{v}, entries, time.Unix(0, 0))
	assert.Equal(t, a.Size(), b.Size())
	assert.Equal(t, a.Lookup(eth), b.Lookup(eth))
}

func TestSnapshotDefaultsToEmptyIndex(t *testing.T) {
	snap := NewSnapshot()
	idx := snap.Current()
	require.NotNil(t, idx)
	assert.Zero(t, idx.Size())
}

func TestRebuilderPublishesActiveVersions(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := list.NewInMemoryStore()
	now := time.Now().UTC()

	v := &list.ListVersion{
		ID:        domain.NewVersionID(),
		Source:    list.SourceOFACSDN,
		Status:    list.StatusPending,
		CreatedAt: now,
	}
	require.NoError(t, store.CreateVersion(ctx, v))
	eth := mustAddress(t, canonical.ChainEthereum, tornadoETH)
	require.NoError(t, store.SaveEntries(ctx, v.ID, []list.Entry{
		{VersionID: v.ID, Address: eth, EntityUID: "30518", EntityName: "TORNADO CASH"},
	}))
	require.NoError(t, store.Promote(ctx, v.ID, now, "scheduler"))

	snap := NewSnapshot()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rebuilder := NewRebuilder(store, snap, logger, nil)

	require.NoError(t, rebuilder.Rebuild(ctx))

	idx := snap.Current()
	assert.Equal(t, 1, idx.Size())
	require.NotNil(t, idx.Lookup(eth))
	assert.Equal(t, []domain.VersionID{v.ID}, idx.VersionIDs())
}

// TestConcurrentLookupsDuringRebuild exercises the publish path under
// concurrent readers: every reader sees either the old or the new index,
// never a torn one.
func TestConcurrentLookupsDuringRebuild(t *testing.T) {
	ctx := context.Background()
	store := list.NewInMemoryStore()
	now := time.Now().UTC()
	eth := mustAddress(t, canonical.ChainEthereum, tornadoETH)

	snap := NewSnapshot()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rebuilder := NewRebuilder(store, snap, logger, nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				idx := snap.Current()
				if m := idx.Lookup(eth); m != nil && m.EntityUID != "30518" {
					t.Error("torn read: unexpected entity")
					return
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		v := &list.ListVersion{
			ID:        domain.NewVersionID(),
			Source:    list.SourceOFACSDN,
			Status:    list.StatusPending,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.CreateVersion(ctx, v))
		require.NoError(t, store.SaveEntries(ctx, v.ID, []list.Entry{
			{VersionID: v.ID, Address: eth, EntityUID: "30518", EntityName: "TORNADO CASH"},
		}))
		require.NoError(t, store.Promote(ctx, v.ID, now, "scheduler"))
		require.NoError(t, rebuilder.Rebuild(ctx))
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 1, snap.Current().Size())
}
