package state

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ChannelStore exchanges state with a supervising process over a line
// protocol. The first input line is a JSON object {"state": <blob or null>};
// saving writes {"type": "store_state", "state": <blob>} as one output line.
type ChannelStore struct {
	in  *bufio.Reader
	mu  sync.Mutex
	out io.Writer

	once   sync.Once
	loaded *JobState
	err    error
}

// NewChannelStore reads from in and writes to out.
func NewChannelStore(in io.Reader, out io.Writer) *ChannelStore {
	return &ChannelStore{in: bufio.NewReader(in), out: out}
}

type channelInput struct {
	State *string `json:"state"`
}

type channelOutput struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// Load reads the first input line once; later calls return the same result.
func (c *ChannelStore) Load(ctx context.Context) (*JobState, error) {
	c.once.Do(func() {
		line, err := c.in.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			c.err = fmt.Errorf("read state line: %w", err)
			return
		}
		if len(bytes.TrimSpace(line)) == 0 {
			return
		}

		var msg channelInput
		if err := json.Unmarshal(line, &msg); err != nil {
			c.err = fmt.Errorf("%w: %w", ErrMalformedState, err)
			return
		}
		if msg.State == nil || *msg.State == "" {
			return
		}
		c.loaded, c.err = Decode(*msg.State)
	})
	return c.loaded, c.err
}

func (c *ChannelStore) Save(ctx context.Context, s *JobState) error {
	blob, err := Encode(s)
	if err != nil {
		return err
	}
	line, err := json.Marshal(channelOutput{Type: "store_state", State: blob})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.out.Write(append(line, '\n'))
	return err
}
