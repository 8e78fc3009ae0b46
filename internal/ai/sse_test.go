package ai

import (
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectEvents(t *testing.T, stream string, oneByte bool) []event {
	t.Helper()
	var r = iotest.OneByteReader(strings.NewReader(stream))
	if !oneByte {
		r = strings.NewReader(stream)
	}
	var events []event
	err := scanEvents(r, func(ev event) (bool, error) {
		events = append(events, ev)
		return false, nil
	})
	require.NoError(t, err)
	return events
}

func TestScanEventsFraming(t *testing.T) {
	stream := "event: message_start\ndata: {\"a\":1}\n\n" +
		": keep-alive comment\n" +
		"data: first\ndata: second\n\n" +
		"data: tail without blank line"

	events := collectEvents(t, stream, false)
	require.Len(t, events, 3)

	assert.Equal(t, "message_start", events[0].name)
	assert.Equal(t, `{"a":1}`, events[0].data)

	// data lines of one event are joined with newlines; comments vanish.
	assert.Equal(t, "", events[1].name)
	assert.Equal(t, "first\nsecond", events[1].data)

	// a trailing unterminated event is still dispatched at EOF.
	assert.Equal(t, "tail without blank line", events[2].data)
}

func TestScanEventsIgnoresCRLF(t *testing.T) {
	events := collectEvents(t, "data: hello\r\n\r\n", false)
	require.Len(t, events, 1)
	assert.Equal(t, "hello", events[0].data)
}

func TestScanEventsSplitIndependent(t *testing.T) {
	stream := "event: delta\ndata: one\n\ndata: two\n\n"
	whole := collectEvents(t, stream, false)
	bytewise := collectEvents(t, stream, true)
	assert.Equal(t, whole, bytewise)
}

func TestScanEventsStopEndsEarly(t *testing.T) {
	stream := "data: first\n\ndata: second\n\n"
	var seen []string
	err := scanEvents(strings.NewReader(stream), func(ev event) (bool, error) {
		seen = append(seen, ev.data)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, seen)
}

func TestScanEventsHandlerError(t *testing.T) {
	err := scanEvents(strings.NewReader("data: boom\n\n"), func(ev event) (bool, error) {
		return false, &StreamError{Message: ev.data}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
