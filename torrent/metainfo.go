package torrent

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MlkMahmud/peerwire/bencode"
	"github.com/MlkMahmud/peerwire/utils"
)

var (
	ErrInvalidFilesLayout = errors.New("metainfo 'info' dictionary must contain exactly one of 'length' or 'files'")
	ErrInvalidPieces      = errors.New("invalid 'pieces' property")
	ErrInvalidPieceLength = errors.New("invalid 'piece length' property")
	ErrInvalidLength      = errors.New("invalid file length")
	ErrInvalidPath        = errors.New("invalid file path")
)

type File struct {
	// The length of the file in bytes.
	Length int64

	// Path segments relative to the torrent's root directory.
	Path []string
}

// FilesLayout is either SingleFile or MultiFile.
type FilesLayout interface {
	TotalLength() int64
	isFilesLayout()
}

type SingleFile struct {
	Length int64
}

type MultiFile struct {
	Files []File
}

func (s SingleFile) TotalLength() int64 {
	return s.Length
}

func (m MultiFile) TotalLength() int64 {
	total := int64(0)

	for _, file := range m.Files {
		total += file.Length
	}

	return total
}

func (SingleFile) isFilesLayout() {}
func (MultiFile) isFilesLayout()  {}

type Info struct {
	Name        string
	PieceLength int64
	Pieces      [][sha1.Size]byte
	Layout      FilesLayout
}

type Metainfo struct {
	Announce     string
	AnnounceList [][]string
	Info         Info
	InfoHash     InfoHash
}

func parseAnnounceList(list bencode.List) ([][]string, error) {
	tiers := make([][]string, 0, len(list))

	for listIndex, tier := range list {
		tierList, err := bencode.AsList(tier)

		if err != nil {
			return nil, fmt.Errorf("announce list contains an invalid entry at index %d: %w", listIndex, err)
		}

		urls := make([]string, 0, len(tierList))

		for tierIndex, entry := range tierList {
			url, err := bencode.AsText(entry)

			if err != nil {
				return nil, fmt.Errorf("announce list entry at index %d contains an invalid entry at index %d: %w", listIndex, tierIndex, err)
			}

			urls = append(urls, url)
		}

		tiers = append(tiers, urls)
	}

	return tiers, nil
}

func parseFilesList(list bencode.List) ([]File, error) {
	files := make([]File, len(list))

	for i, entry := range list {
		fileDict, err := bencode.AsDict(entry)

		if err != nil {
			return nil, fmt.Errorf("files list contains an invalid entry at index '%d': %w", i, err)
		}

		length, err := fileDict.Int("length")

		if err != nil {
			return nil, fmt.Errorf("files list entry at index '%d' contains an invalid 'length' property: %w", i, err)
		}

		if length < 0 {
			return nil, fmt.Errorf("%w: files list entry at index '%d' has length %d", ErrInvalidLength, i, length)
		}

		paths, err := fileDict.List("path")

		if err != nil {
			return nil, fmt.Errorf("files list entry at index '%d' contains an invalid 'path' property: %w", i, err)
		}

		if len(paths) == 0 {
			return nil, fmt.Errorf("%w: files list entry at index '%d' has an empty path", ErrInvalidPath, i)
		}

		pathList := make([]string, len(paths))

		for index, segment := range paths {
			if pathList[index], err = bencode.AsText(segment); err != nil {
				return nil, fmt.Errorf("files list entry at index '%d' contains an invalid 'path' segment at index %d: %w", i, index, err)
			}
		}

		files[i] = File{Length: length, Path: pathList}
	}

	return files, nil
}

func parsePiecesHashes(pieces []byte) ([][sha1.Size]byte, error) {
	if len(pieces)%sha1.Size != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of %d", ErrInvalidPieces, len(pieces), sha1.Size)
	}

	hashes := make([][sha1.Size]byte, len(pieces)/sha1.Size)

	for i := range hashes {
		copy(hashes[i][:], pieces[i*sha1.Size:])
	}

	return hashes, nil
}

func parseFilesLayout(infoDict bencode.Map) (FilesLayout, error) {
	hasLength := infoDict.Has("length")
	hasFiles := infoDict.Has("files")

	switch {
	case hasLength && hasFiles:
		return nil, fmt.Errorf("%w: found both", ErrInvalidFilesLayout)

	case !hasLength && !hasFiles:
		return nil, fmt.Errorf("%w: found neither", ErrInvalidFilesLayout)

	case hasLength:
		length, err := infoDict.Int("length")

		if err != nil {
			return nil, err
		}

		if length < 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidLength, length)
		}

		return SingleFile{Length: length}, nil

	default:
		filesList, err := infoDict.List("files")

		if err != nil {
			return nil, err
		}

		files, err := parseFilesList(filesList)

		if err != nil {
			return nil, err
		}

		return MultiFile{Files: files}, nil
	}
}

func parseInfoDict(infoDict bencode.Map) (Info, error) {
	name, err := infoDict.Text("name")

	if err != nil {
		return Info{}, err
	}

	pieceLength, err := infoDict.Int("piece length")

	if err != nil {
		return Info{}, err
	}

	if pieceLength <= 0 {
		return Info{}, fmt.Errorf("%w: %d", ErrInvalidPieceLength, pieceLength)
	}

	rawPieces, err := infoDict.Raw("pieces")

	if err != nil {
		return Info{}, err
	}

	pieces, err := parsePiecesHashes(rawPieces)

	if err != nil {
		return Info{}, err
	}

	layout, err := parseFilesLayout(infoDict)

	if err != nil {
		return Info{}, err
	}

	return Info{
		Name:        name,
		PieceLength: pieceLength,
		Pieces:      pieces,
		Layout:      layout,
	}, nil
}

// MetainfoDecoder parses metainfo documents with Decoder. The zero value uses
// bencode.DefaultMaxDepth.
type MetainfoDecoder struct {
	Decoder bencode.Decoder
}

// ParseMetainfo decodes a metainfo document with the default decoder.
func ParseMetainfo(data []byte) (*Metainfo, error) {
	return MetainfoDecoder{}.Parse(data)
}

func ReadMetainfoFile(path string) (*Metainfo, error) {
	return MetainfoDecoder{}.ReadFile(path)
}

// Parse decodes a metainfo document. The info hash covers the whole decoded
// 'info' dictionary, keys this package does not model included.
func (d MetainfoDecoder) Parse(data []byte) (*Metainfo, error) {
	decodedValue, _, err := d.Decoder.Decode(data)

	if err != nil {
		return nil, fmt.Errorf("failed to decode metainfo file: %w", err)
	}

	metainfoDict, err := bencode.AsDict(decodedValue)

	if err != nil {
		return nil, fmt.Errorf("expected metainfo to be a bencoded dictionary: %w", err)
	}

	announce, err := metainfoDict.Text("announce")

	if err != nil {
		return nil, fmt.Errorf("failed to parse metainfo: %w", err)
	}

	infoDict, err := metainfoDict.Dict("info")

	if err != nil {
		return nil, fmt.Errorf("failed to parse metainfo: %w", err)
	}

	var announceList [][]string

	if metainfoDict.Has("announce-list") {
		list, err := metainfoDict.List("announce-list")

		if err != nil {
			return nil, fmt.Errorf("failed to parse announce list: %w", err)
		}

		if announceList, err = parseAnnounceList(list); err != nil {
			return nil, fmt.Errorf("failed to parse announce list: %w", err)
		}
	}

	info, err := parseInfoDict(infoDict)

	if err != nil {
		return nil, fmt.Errorf("failed to parse metainfo 'info' dictionary: %w", err)
	}

	return &Metainfo{
		Announce:     announce,
		AnnounceList: announceList,
		Info:         info,
		InfoHash:     sha1.Sum(bencode.Encode(infoDict)),
	}, nil
}

func (d MetainfoDecoder) ReadFile(path string) (*Metainfo, error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("failed to read metainfo file \"%s\": %w", path, err)
	}

	return d.Parse(data)
}

// Trackers returns the HTTP(S) announce URLs of the torrent, primary
// announce first, without duplicates.
func (m *Metainfo) Trackers() []string {
	seen := utils.NewSet()
	trackers := []string{}

	add := func(url string) {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return
		}

		if seen.Contains(url) {
			return
		}

		seen.Add(url)
		trackers = append(trackers, url)
	}

	add(m.Announce)

	for _, tier := range m.AnnounceList {
		for _, url := range tier {
			add(url)
		}
	}

	return trackers
}

func (f File) value() bencode.Value {
	path := make(bencode.List, len(f.Path))

	for i, segment := range f.Path {
		path[i] = bencode.Text(segment)
	}

	return bencode.Map{
		"length": bencode.Integer(f.Length),
		"path":   path,
	}
}

// Value rebuilds the canonical 'info' dictionary.
func (i Info) Value() bencode.Map {
	pieces := make([]byte, 0, len(i.Pieces)*sha1.Size)

	for _, hash := range i.Pieces {
		pieces = append(pieces, hash[:]...)
	}

	dict := bencode.Map{
		"name":         bencode.Text(i.Name),
		"piece length": bencode.Integer(i.PieceLength),
		"pieces":       bencode.String(pieces),
	}

	switch layout := i.Layout.(type) {
	case SingleFile:
		dict["length"] = bencode.Integer(layout.Length)

	case MultiFile:
		files := make(bencode.List, len(layout.Files))

		for index, file := range layout.Files {
			files[index] = file.value()
		}

		dict["files"] = files
	}

	return dict
}

// Hash is the SHA-1 digest of the canonical encoding of the info dictionary.
func (i Info) Hash() InfoHash {
	return sha1.Sum(bencode.Encode(i.Value()))
}

func (i Info) TotalLength() int64 {
	if i.Layout == nil {
		return 0
	}

	return i.Layout.TotalLength()
}

func (i Info) NumPieces() int {
	return len(i.Pieces)
}

// PieceSize returns the length of the piece at index; only the last piece
// may be shorter than PieceLength.
func (i Info) PieceSize(index int) (int64, error) {
	if index < 0 || index >= len(i.Pieces) {
		return 0, fmt.Errorf("piece index %d is out of range [0, %d)", index, len(i.Pieces))
	}

	if index < len(i.Pieces)-1 {
		return i.PieceLength, nil
	}

	last := i.TotalLength() - int64(index)*i.PieceLength

	if last <= 0 || last > i.PieceLength {
		return 0, fmt.Errorf("%w: last piece would be %d bytes", ErrInvalidPieces, last)
	}

	return last, nil
}

// Validate checks that the number of piece checksums matches the total
// content length. Parsing does not enforce this.
func (i Info) Validate() error {
	if i.PieceLength <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPieceLength, i.PieceLength)
	}

	total := i.TotalLength()
	expected := (total + i.PieceLength - 1) / i.PieceLength

	if int64(len(i.Pieces)) != expected {
		return fmt.Errorf("%w: expected %d checksums for %d bytes, got %d", ErrInvalidPieces, expected, total, len(i.Pieces))
	}

	return nil
}
