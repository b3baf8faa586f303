package peerstore

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MlkMahmud/peerwire/torrent"
)

func openStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "cache", "peers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestOpenOnDirectoryFails(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err)
}

func TestSavePeersDelete(t *testing.T) {
	store := openStore(t)
	savedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return savedAt }

	infoHash := torrent.InfoHash{1, 2, 3}
	peers := []torrent.Peer{
		{IP: net.IPv4(10, 0, 0, 1).To4(), Port: 6881},
		{Id: []byte("-XX0001-abcdefghijkl"), IP: net.IPv4(10, 0, 0, 2).To4(), Port: 51413},
	}

	_, _, err := store.Peers(infoHash)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(infoHash, peers))

	cached, updatedAt, err := store.Peers(infoHash)
	require.NoError(t, err)
	assert.Equal(t, savedAt, updatedAt)
	require.Len(t, cached, 2)
	assert.Equal(t, "10.0.0.1:6881", cached[0].String())
	assert.Equal(t, peers[1].Id, cached[1].Id)

	require.NoError(t, store.Delete(infoHash))
	require.ErrorIs(t, store.Delete(infoHash), ErrNotFound)
}

func TestPeersSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.db")
	infoHash := torrent.InfoHash{9}

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(infoHash, []torrent.Peer{{IP: net.IPv4(127, 0, 0, 1).To4(), Port: 1}}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	cached, _, err := store.Peers(infoHash)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}
