package torrent

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/MlkMahmud/peerwire/bencode"
)

var ErrUnsupportedTracker = errors.New("tracker URL protocol must be one of 'HTTP' or 'HTTPS'")

type Event string

const (
	EventNone      Event = ""
	EventStarted   Event = "started"
	EventCompleted Event = "completed"
	EventStopped   Event = "stopped"
)

const (
	compactPeerSize     = 6
	maxTrackerResponse  = 4 * 1024 * 1024
	defaultAnnounceWait = 15 * time.Second
)

type AnnounceRequest struct {
	AnnounceURL string
	InfoHash    InfoHash
	PeerId      [20]byte
	// IP is optional; trackers use the source address when it is nil.
	IP         net.IP
	Port       uint16
	Uploaded   int64
	Downloaded int64
	Left       int64
	Compact    bool
	Event      Event
}

type AnnounceResponse struct {
	// Number of seconds the client should wait between regular announces.
	Interval    time.Duration
	MinInterval time.Duration
	Complete    int64
	Incomplete  int64
	Peers       []Peer
	Warning     string
}

// TrackerFailureError carries the tracker's 'failure reason'.
type TrackerFailureError struct {
	Reason string
}

func (e *TrackerFailureError) Error() string {
	return fmt.Sprintf("tracker returned failure: %s", e.Reason)
}

type TrackerClient struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Decoder parses announce responses.
	Decoder bencode.Decoder
}

// URL builds the announce URL, keeping any query parameters already present
// in AnnounceURL.
func (r AnnounceRequest) URL() (string, error) {
	parsedURL, err := url.Parse(r.AnnounceURL)

	if err != nil {
		return "", fmt.Errorf("failed to parse tracker URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("%w: got '%s'", ErrUnsupportedTracker, parsedURL.Scheme)
	}

	params := parsedURL.Query()

	params.Set("info_hash", string(r.InfoHash[:]))
	params.Set("peer_id", string(r.PeerId[:]))
	params.Set("port", strconv.Itoa(int(r.Port)))
	params.Set("uploaded", strconv.FormatInt(r.Uploaded, 10))
	params.Set("downloaded", strconv.FormatInt(r.Downloaded, 10))
	params.Set("left", strconv.FormatInt(r.Left, 10))

	if r.Compact {
		params.Set("compact", "1")
	} else {
		params.Set("compact", "0")
	}

	if r.Event != EventNone {
		params.Set("event", string(r.Event))
	}

	if r.IP != nil {
		params.Set("ip", r.IP.String())
	}

	parsedURL.RawQuery = params.Encode()
	return parsedURL.String(), nil
}

func (c *TrackerClient) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}

	return c.Logger
}

func (c *TrackerClient) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return &http.Client{Timeout: defaultAnnounceWait}
	}

	return c.HTTPClient
}

func (c *TrackerClient) Announce(ctx context.Context, req AnnounceRequest) (*AnnounceResponse, error) {
	requestURL, err := req.URL()

	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)

	if err != nil {
		return nil, fmt.Errorf("failed to create announce request: %w", err)
	}

	res, err := c.httpClient().Do(httpReq)

	if err != nil {
		return nil, fmt.Errorf("failed to send announce request to %s: %w", req.AnnounceURL, err)
	}

	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker %s responded with status %d", req.AnnounceURL, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxTrackerResponse))

	if err != nil {
		return nil, fmt.Errorf("failed to read announce response from %s: %w", req.AnnounceURL, err)
	}

	response, err := parseAnnounceResponse(c.Decoder, body)

	if err != nil {
		return nil, err
	}

	if response.Warning != "" {
		c.logger().Warn("tracker warning", "tracker", req.AnnounceURL, "message", response.Warning)
	}

	c.logger().Debug("announce succeeded", "tracker", req.AnnounceURL, "peers", len(response.Peers), "interval", response.Interval)

	return response, nil
}

/*
ParseAnnounceResponse decodes a tracker response. A successful response is a
dictionary with an 'interval' and a 'peers' key; 'peers' is either a list of
dictionaries ('peer id', 'ip', 'port') or, with the compact extension, a single
string of 6-byte entries (4 bytes IPv4 address, 2 bytes big-endian port).

A failed request is a dictionary with a 'failure reason' key and nothing else
is required.
*/
func ParseAnnounceResponse(data []byte) (*AnnounceResponse, error) {
	return parseAnnounceResponse(bencode.Decoder{}, data)
}

func parseAnnounceResponse(decoder bencode.Decoder, data []byte) (*AnnounceResponse, error) {
	decodedResponse, _, err := decoder.Decode(data)

	if err != nil {
		return nil, fmt.Errorf("failed to decode tracker response: %w", err)
	}

	dict, err := bencode.AsDict(decodedResponse)

	if err != nil {
		return nil, fmt.Errorf("tracker response must be a dictionary: %w", err)
	}

	if dict.Has("failure reason") {
		reason, err := dict.Text("failure reason")

		if err != nil {
			return nil, fmt.Errorf("failed to parse tracker response: %w", err)
		}

		return nil, &TrackerFailureError{Reason: reason}
	}

	interval, err := dict.Int("interval")

	if err != nil {
		return nil, fmt.Errorf("failed to parse tracker response: %w", err)
	}

	response := &AnnounceResponse{Interval: time.Duration(interval) * time.Second}

	if dict.Has("min interval") {
		minInterval, err := dict.Int("min interval")

		if err != nil {
			return nil, fmt.Errorf("failed to parse tracker response: %w", err)
		}

		response.MinInterval = time.Duration(minInterval) * time.Second
	}

	for key, target := range map[string]*int64{"complete": &response.Complete, "incomplete": &response.Incomplete} {
		if !dict.Has(key) {
			continue
		}

		if *target, err = dict.Int(key); err != nil {
			return nil, fmt.Errorf("failed to parse tracker response: %w", err)
		}
	}

	if dict.Has("warning message") {
		if response.Warning, err = dict.Text("warning message"); err != nil {
			return nil, fmt.Errorf("failed to parse tracker response: %w", err)
		}
	}

	if response.Peers, err = parsePeers(dict); err != nil {
		return nil, fmt.Errorf("failed to parse tracker response: %w", err)
	}

	return response, nil
}

func parsePeers(dict bencode.Map) ([]Peer, error) {
	if list, err := dict.List("peers"); err == nil {
		return parsePeersList(list)
	}

	compact, err := dict.Raw("peers")

	if err != nil {
		return nil, err
	}

	return parseCompactPeers(compact)
}

func parseCompactPeers(peers []byte) ([]Peer, error) {
	if len(peers)%compactPeerSize != 0 {
		return nil, fmt.Errorf("compact peers value must be a multiple of '%d' bytes, got %d", compactPeerSize, len(peers))
	}

	peersArr := make([]Peer, len(peers)/compactPeerSize)

	for i := range peersArr {
		entry := peers[i*compactPeerSize:]
		peersArr[i] = Peer{
			IP:   net.IPv4(entry[0], entry[1], entry[2], entry[3]).To4(),
			Port: binary.BigEndian.Uint16(entry[4:6]),
		}
	}

	return peersArr, nil
}

func parsePeersList(list bencode.List) ([]Peer, error) {
	peersArr := make([]Peer, len(list))

	for index, entry := range list {
		peerDict, err := bencode.AsDict(entry)

		if err != nil {
			return nil, fmt.Errorf("peers list contains an invalid entry at index %d: %w", index, err)
		}

		ipAddress, err := peerDict.Text("ip")

		if err != nil {
			return nil, fmt.Errorf("peers list entry at index %d: %w", index, err)
		}

		ip := net.ParseIP(ipAddress)

		if ip == nil {
			return nil, fmt.Errorf("peers list entry at index %d contains an invalid ip address '%s'", index, ipAddress)
		}

		if ip4 := ip.To4(); ip4 != nil {
			ip = ip4
		}

		port, err := peerDict.Int("port")

		if err != nil {
			return nil, fmt.Errorf("peers list entry at index %d: %w", index, err)
		}

		if port < 0 || port > 65535 {
			return nil, fmt.Errorf("peers list entry at index %d contains an invalid port %d", index, port)
		}

		var peerId []byte

		if peerDict.Has("peer id") {
			if peerId, err = peerDict.Raw("peer id"); err != nil {
				return nil, fmt.Errorf("peers list entry at index %d: %w", index, err)
			}
		}

		peersArr[index] = Peer{Id: peerId, IP: ip, Port: uint16(port)}
	}

	return peersArr, nil
}
