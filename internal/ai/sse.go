package ai

import (
	"bufio"
	"io"
	"strings"
)

// event is one framed server-sent event.
type event struct {
	name string
	data string
}

// eventHandler consumes a framed event. Returning stop ends the scan early;
// returning an error aborts it.
type eventHandler func(ev event) (stop bool, err error)

// scanEvents frames an SSE byte stream into events and feeds them to handle.
// Framing rules: a blank line ends the current event; "event:" sets the
// event name; "data:" lines accumulate, joined by newlines; lines starting
// with ":" are comments and are ignored. The result is independent of how
// the bytes were split across reads. A trailing unterminated event is still
// dispatched at EOF.
func scanEvents(r io.Reader, handle eventHandler) error {
	reader := bufio.NewReader(r)

	var name string
	var data []string

	dispatch := func() (bool, error) {
		if name == "" && len(data) == 0 {
			return false, nil
		}
		ev := event{name: name, data: strings.Join(data, "\n")}
		name = ""
		data = data[:0]
		return handle(ev)
	}

	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		switch {
		case err == nil && line == "":
			stop, handleErr := dispatch()
			if handleErr != nil {
				return handleErr
			}
			if stop {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			// comment line
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}

		if err != nil {
			if err == io.EOF {
				if _, handleErr := dispatch(); handleErr != nil {
					return handleErr
				}
				return nil
			}
			return err
		}
	}
}
