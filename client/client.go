// Package client talks to the relay's WebSocket endpoint the way the browser
// app does: it sends frequencies or A/D keys and receives text frames.
package client

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
)

type Client struct {
	conn net.Conn
	r    io.Reader

	// wmu keeps frames from interleaving on conn:
	wmu sync.Mutex

	onMessage func(text string)

	write chan string
	done  chan struct{}
	once  sync.Once

	errMu sync.Mutex
	err   error
}

// URL turns "host:port" into the relay socket URL; full ws:// URLs pass through.
func URL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	if strings.HasPrefix(addr, "http://") {
		addr = strings.TrimPrefix(addr, "http://")
	}
	addr = strings.TrimSuffix(addr, "/")
	return "ws://" + addr + "/ws/"
}

// Dial connects to the relay. onMessage is called from the read goroutine for
// every text frame, starting with the server greeting.
func Dial(ctx context.Context, url string, onMessage func(text string)) (*Client, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", url, err)
	}

	// br holds frames the server sent along with the handshake response:
	var r io.Reader = conn
	if br != nil {
		r = io.MultiReader(br, conn)
	}

	c := &Client{
		conn:      conn,
		r:         bufio.NewReader(r),
		onMessage: onMessage,
		write:     make(chan string, 16),
		done:      make(chan struct{}),
	}

	go c.readLoop()
	go c.writeLoop()

	return c, nil
}

func (c *Client) SendFrequency(hz int) error {
	return c.SendText(strconv.Itoa(hz))
}

// SendKey sends a single A or D key press.
func (c *Client) SendKey(key string) error {
	k := strings.ToUpper(strings.TrimSpace(key))
	if k != "A" && k != "D" {
		return fmt.Errorf("client: unsupported key %q", key)
	}
	return c.SendText(k)
}

func (c *Client) SendText(text string) error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
	}

	select {
	case c.write <- text:
		return nil
	case <-c.done:
		return c.closedErr()
	}
}

// Done is closed once the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended, nil after a clean Close.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	c.disconnect(nil)
	return nil
}

func (c *Client) closedErr() error {
	if err := c.Err(); err != nil {
		return err
	}
	return net.ErrClosed
}

func (c *Client) disconnect(err error) {
	c.once.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()

		if err == nil {
			// say goodbye properly:
			c.wmu.Lock()
			_ = ws.WriteFrame(c.conn, ws.MaskFrame(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))))
			c.wmu.Unlock()
		}
		close(c.done)
		if cerr := c.conn.Close(); cerr != nil {
			log.Print(cerr)
		}
	})
}

// must run in a goroutine
func (c *Client) readLoop() {
	// control frame replies are assembled here and sent whole under wmu:
	var ctrl bytes.Buffer
	controlHandler := wsutil.ControlFrameHandler(&ctrl, ws.StateClientSide)
	rd := &wsutil.Reader{
		Source:    c.r,
		State:     ws.StateClientSide,
		CheckUTF8: true,
		OnIntermediate: func(hdr ws.Header, r io.Reader) error {
			err := controlHandler(hdr, r)
			c.flushControl(&ctrl)
			return err
		},
	}

	for {
		data, err := c.nextText(rd, controlHandler, &ctrl)
		if err != nil {
			var closed wsutil.ClosedError
			if errors.As(err, &closed) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				c.disconnect(nil)
			} else {
				c.disconnect(err)
			}
			return
		}
		if c.onMessage != nil {
			c.onMessage(string(data))
		}
	}
}

func (c *Client) nextText(rd *wsutil.Reader, controlHandler wsutil.FrameHandlerFunc, ctrl *bytes.Buffer) ([]byte, error) {
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			err = controlHandler(hdr, rd)
			c.flushControl(ctrl)
			if err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode != ws.OpText {
			if err := rd.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return io.ReadAll(rd)
	}
}

func (c *Client) flushControl(ctrl *bytes.Buffer) {
	if ctrl.Len() == 0 {
		return
	}
	c.wmu.Lock()
	_, _ = c.conn.Write(ctrl.Bytes())
	c.wmu.Unlock()
	ctrl.Reset()
}

// must run in a goroutine
func (c *Client) writeLoop() {
	for {
		select {
		case text := <-c.write:
			c.wmu.Lock()
			err := wsutil.WriteClientText(c.conn, []byte(text))
			c.wmu.Unlock()
			if err != nil {
				c.disconnect(err)
				return
			}
		case <-c.done:
			return
		}
	}
}
