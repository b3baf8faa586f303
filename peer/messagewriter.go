package peer

import (
	"io"
)

func WriteMessage(w io.Writer, m Message) error {
	if _, err := w.Write(MarshalMessage(m)); err != nil {
		return &TransportError{Op: "write message", Err: err}
	}

	return nil
}
