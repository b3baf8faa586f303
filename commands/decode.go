package commands

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/MlkMahmud/peerwire/bencode"
)

func HandleDecodeCommand(ctx *cli.Context) error {
	input := ctx.Args().First()
	decoder := bencodeDecoder(configFrom(ctx))

	value, rest, err := decoder.Decode([]byte(input))

	if err != nil {
		return err
	}

	if len(rest) > 0 {
		return fmt.Errorf("unexpected %d bytes after the bencoded value", len(rest))
	}

	encoder := json.NewEncoder(ctx.App.Writer)
	return encoder.Encode(toJSON(value))
}

// toJSON maps a decoded value onto types encoding/json understands. Byte
// strings that are not valid UTF-8 are rendered as hex.
func toJSON(value bencode.Value) any {
	switch v := value.(type) {
	case bencode.Integer:
		return int64(v)
	case bencode.Text:
		return string(v)
	case bencode.Bytes:
		return hex.EncodeToString(v)
	case bencode.List:
		list := make([]any, len(v))

		for i, item := range v {
			list[i] = toJSON(item)
		}

		return list
	case bencode.Map:
		dict := make(map[string]any, len(v))

		for key, item := range v {
			dict[key] = toJSON(item)
		}

		return dict
	default:
		return nil
	}
}
