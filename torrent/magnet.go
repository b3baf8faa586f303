package torrent

import (
	"crypto/sha1"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// InfoHash identifies a torrent: the SHA-1 digest of its bencoded 'info'
// dictionary.
type InfoHash [sha1.Size]byte

func (h InfoHash) String() string {
	return hex.EncodeToString(h[:])
}

func (h InfoHash) IsZero() bool {
	return h == InfoHash{}
}

type Magnet struct {
	InfoHash InfoHash
	Name     string
	Trackers []string
}

// ParseInfoHash accepts the 40-character hex or 32-character base32 forms.
func ParseInfoHash(encodedInfoHash string) (InfoHash, error) {
	var infoHash InfoHash
	expectedHexEncodedLength := 40
	expectedBase32EncodedLength := 32
	encodedInfoHashLength := len(encodedInfoHash)

	switch encodedInfoHashLength {
	case expectedHexEncodedLength:
		decodedInfoHash, err := hex.DecodeString(encodedInfoHash)

		if err != nil {
			return infoHash, fmt.Errorf("failed to decode hex encoded info hash: %w", err)
		}

		copy(infoHash[:], decodedInfoHash)

	case expectedBase32EncodedLength:
		decodedInfoHash, err := base32.StdEncoding.DecodeString(strings.ToUpper(encodedInfoHash))

		if err != nil {
			return infoHash, fmt.Errorf("failed to decode base32 encoded info hash: %w", err)
		}

		copy(infoHash[:], decodedInfoHash)

	default:
		return infoHash, fmt.Errorf("info hash must be %d or %d characters long, but received value is %d characters long", expectedHexEncodedLength, expectedBase32EncodedLength, encodedInfoHashLength)
	}

	return infoHash, nil
}

func parseInfoHashParameter(xtParameter string) (InfoHash, error) {
	infoHashURNPrefix := "urn:btih:"

	if !strings.HasPrefix(xtParameter, infoHashURNPrefix) {
		return InfoHash{}, fmt.Errorf("info hash parameter contains an invalid prefix. expected '%s' got '%s'", infoHashURNPrefix, xtParameter)
	}

	return ParseInfoHash(xtParameter[len(infoHashURNPrefix):])
}

func ParseMagnet(magnetLink string) (*Magnet, error) {
	magnetURL, err := url.Parse(magnetLink)

	if err != nil {
		return nil, fmt.Errorf("failed to parse magnet URL: %w", err)
	}

	if magnetURL.Scheme != "magnet" {
		return nil, fmt.Errorf("URL scheme is invalid. expected \"magnet\" got \"%s\"", magnetURL.Scheme)
	}

	params, err := url.ParseQuery(magnetURL.RawQuery)

	if err != nil {
		return nil, err
	}

	if infoHashParam, ok := params["xt"]; !ok || len(infoHashParam) != 1 {
		return nil, fmt.Errorf("magnet URL must include exactly one 'xt' (info hash) parameter")
	}

	infoHash, err := parseInfoHashParameter(params["xt"][0])

	if err != nil {
		return nil, err
	}

	return &Magnet{
		InfoHash: infoHash,
		Name:     params.Get("dn"),
		Trackers: params["tr"],
	}, nil
}
