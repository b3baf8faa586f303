package torrent

import (
	"net"
	"strconv"
)

// Peer is a remote endpoint returned by a tracker. Id is nil when the
// tracker omitted it (always the case for compact responses).
type Peer struct {
	Id   []byte `json:"id,omitempty"`
	IP   net.IP `json:"ip"`
	Port uint16 `json:"port"`
}

func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}
