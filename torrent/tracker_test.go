package torrent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MlkMahmud/peerwire/bencode"
)

var (
	trackerInfoHash = InfoHash{0xd6, 0x9f, 0x91, 0xe6, 0xb2, 0xae, 0x4c, 0x54, 0x24, 0x68, 0xd1, 0x07, 0x3a, 0x71, 0xd4, 0xea, 0x13, 0x87, 0x9a, 0x7f}
	trackerPeerId   = [20]byte([]byte("-PW0001-000000000000"))
)

func TestAnnounceRequestURL(t *testing.T) {
	request := AnnounceRequest{
		AnnounceURL: "http://tracker.example.com/announce?passkey=abc",
		InfoHash:    trackerInfoHash,
		PeerId:      trackerPeerId,
		Port:        6881,
		Left:        92063,
		Compact:     true,
		Event:       EventStarted,
	}

	rawURL, err := request.URL()
	require.NoError(t, err)

	parsedURL, err := url.Parse(rawURL)
	require.NoError(t, err)

	query := parsedURL.Query()
	assert.Equal(t, "abc", query.Get("passkey"))
	assert.Equal(t, string(trackerInfoHash[:]), query.Get("info_hash"))
	assert.Equal(t, string(trackerPeerId[:]), query.Get("peer_id"))
	assert.Equal(t, "6881", query.Get("port"))
	assert.Equal(t, "0", query.Get("uploaded"))
	assert.Equal(t, "92063", query.Get("left"))
	assert.Equal(t, "1", query.Get("compact"))
	assert.Equal(t, "started", query.Get("event"))
	assert.False(t, query.Has("ip"))
}

func TestAnnounceRequestURLUnsupportedScheme(t *testing.T) {
	_, err := AnnounceRequest{AnnounceURL: "udp://tracker.example.com:6969"}.URL()
	require.ErrorIs(t, err, ErrUnsupportedTracker)
}

func TestParseAnnounceResponse(t *testing.T) {
	compact := bencode.Encode(bencode.Map{
		"interval":     bencode.Integer(60),
		"min interval": bencode.Integer(30),
		"complete":     bencode.Integer(3),
		"incomplete":   bencode.Integer(1),
		"peers":        bencode.Bytes{165, 232, 41, 73, 0xc9, 0x55, 178, 62, 85, 20, 0xc9, 0x01},
	})

	dictionary := bencode.Encode(bencode.Map{
		"interval": bencode.Integer(1800),
		"peers": bencode.List{
			bencode.Map{"peer id": bencode.Text("-XX0001-abcdefghijkl"), "ip": bencode.Text("10.0.0.1"), "port": bencode.Integer(51413)},
			bencode.Map{"ip": bencode.Text("::1"), "port": bencode.Integer(6881)},
		},
	})

	tests := []struct {
		name     string
		input    []byte
		expected *AnnounceResponse
	}{
		{
			name:  "compact peers",
			input: compact,
			expected: &AnnounceResponse{
				Interval:    60 * time.Second,
				MinInterval: 30 * time.Second,
				Complete:    3,
				Incomplete:  1,
				Peers: []Peer{
					{IP: net.IPv4(165, 232, 41, 73).To4(), Port: 51541},
					{IP: net.IPv4(178, 62, 85, 20).To4(), Port: 51457},
				},
			},
		},
		{
			name:  "dictionary peers",
			input: dictionary,
			expected: &AnnounceResponse{
				Interval: 30 * time.Minute,
				Peers: []Peer{
					{Id: []byte("-XX0001-abcdefghijkl"), IP: net.IPv4(10, 0, 0, 1).To4(), Port: 51413},
					{IP: net.ParseIP("::1"), Port: 6881},
				},
			},
		},
	}

	for i, test := range tests {
		t.Run(fmt.Sprintf("Test %d: %s", i, test.name), func(t *testing.T) {
			response, err := ParseAnnounceResponse(test.input)

			require.NoError(t, err)
			assert.Equal(t, test.expected, response)
		})
	}
}

func TestParseAnnounceResponseErrors(t *testing.T) {
	failure := bencode.Encode(bencode.Map{"failure reason": bencode.Text("unregistered torrent")})

	_, err := ParseAnnounceResponse(failure)

	var failureErr *TrackerFailureError
	require.True(t, errors.As(err, &failureErr))
	assert.Equal(t, "unregistered torrent", failureErr.Reason)

	_, err = ParseAnnounceResponse(bencode.Encode(bencode.Map{"peers": bencode.Bytes{}}))
	require.ErrorIs(t, err, bencode.ErrMissingKey)

	_, err = ParseAnnounceResponse(bencode.Encode(bencode.Map{
		"interval": bencode.Integer(60),
		"peers":    bencode.Bytes{1, 2, 3, 4, 5},
	}))
	require.Error(t, err)
}

func TestTrackerClientAnnounce(t *testing.T) {
	var received url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.URL.Query()

		w.Write(bencode.Encode(bencode.Map{
			"interval":        bencode.Integer(60),
			"warning message": bencode.Text("slow down"),
			"peers":           bencode.Bytes{127, 0, 0, 1, 0x1a, 0xe1},
		}))
	}))
	defer server.Close()

	client := &TrackerClient{}

	response, err := client.Announce(context.Background(), AnnounceRequest{
		AnnounceURL: server.URL + "/announce",
		InfoHash:    trackerInfoHash,
		PeerId:      trackerPeerId,
		Port:        6881,
		Compact:     true,
	})

	require.NoError(t, err)
	assert.Equal(t, "slow down", response.Warning)
	require.Len(t, response.Peers, 1)
	assert.Equal(t, "127.0.0.1:6881", response.Peers[0].String())
	assert.Equal(t, string(trackerInfoHash[:]), received.Get("info_hash"))
}

func TestTrackerClientAnnounceStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := &TrackerClient{HTTPClient: server.Client()}

	_, err := client.Announce(context.Background(), AnnounceRequest{AnnounceURL: server.URL})
	require.ErrorContains(t, err, "status 500")
}

func TestTrackerClientDecoderDepth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bencode.Encode(bencode.Map{
			"interval": bencode.Integer(60),
			"peers": bencode.List{
				bencode.Map{"ip": bencode.Text("127.0.0.1"), "port": bencode.Integer(6881)},
			},
		}))
	}))
	defer server.Close()

	request := AnnounceRequest{AnnounceURL: server.URL + "/announce", InfoHash: trackerInfoHash, PeerId: trackerPeerId}

	shallow := &TrackerClient{Decoder: bencode.Decoder{MaxDepth: 2}}
	_, err := shallow.Announce(context.Background(), request)
	require.ErrorIs(t, err, bencode.ErrMaxDepthExceeded)

	deep := &TrackerClient{Decoder: bencode.Decoder{MaxDepth: 3}}
	response, err := deep.Announce(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, response.Peers, 1)
}
