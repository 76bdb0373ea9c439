// Package webui serves the browser app and relays text frames between browser
// sockets and the register relay.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"vled/interfaces"
	"vled/webui/dist"
)

const socketQueueSize = 64

type WebServer struct {
	listenAddr string
	greeting   string

	handler interfaces.MessageHandler
	status  interfaces.StatusProvider

	mux *http.ServeMux

	socketsRw sync.RWMutex
	sockets   []*Socket

	// broadcast channel to all sockets:
	q    chan string
	stop chan struct{}
	once sync.Once
}

type Socket struct {
	ws   *WebServer
	req  *http.Request
	conn net.Conn

	ctx    context.Context
	cancel context.CancelFunc

	// write channel:
	q chan string

	dropped atomic.Int32
}

type StatusModel struct {
	Clients int         `json:"clients"`
	Relay   interface{} `json:"relay,omitempty"`
}

// NewWebServer starts a web server with websockets support so browsers can
// watch readings and send frequency changes.
func NewWebServer(listenAddr string, greeting string) *WebServer {
	s := &WebServer{
		listenAddr: listenAddr,
		greeting:   greeting,
		mux:        http.NewServeMux(),
		sockets:    make([]*Socket, 0, 2),
		q:          make(chan string, socketQueueSize),
		stop:       make(chan struct{}),
	}

	// handle websockets:
	s.mux.Handle("/ws/", http.HandlerFunc(s.upgrade))

	s.mux.Handle("/api/status", http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(rw).Encode(s.StatusModel()); err != nil {
			log.Printf("web: status: %v\n", err)
		}
	}))

	// serve embedded static content, but let clients that connect to the root
	// with an Upgrade header open a socket there:
	static := MaxAge(http.FileServer(http.FS(dist.Content)))
	s.mux.Handle("/", http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if isWebSocketUpgrade(req) {
			s.upgrade(rw, req)
			return
		}
		static.ServeHTTP(rw, req)
	}))

	// handle the broadcast channel:
	go s.handleBroadcast()

	return s
}

func isWebSocketUpgrade(req *http.Request) bool {
	return strings.EqualFold(req.Header.Get("Upgrade"), "websocket")
}

func (s *WebServer) upgrade(rw http.ResponseWriter, req *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(req, rw)
	if err != nil {
		log.Printf("web: upgrade: %v\n", err)
		return
	}

	// create the Socket to handle bidirectional communication:
	socket := NewSocket(s, req, conn)
	s.appendSocket(socket)
	log.Printf("web: %s connected (%d clients)\n", conn.RemoteAddr(), s.Clients())

	// greet the new socket and tell it the current state:
	if s.greeting != "" {
		socket.Send(s.greeting)
	}
	if msg, err := s.statusMessage(); err == nil {
		socket.Send(msg)
	}

	go socket.readHandler()
	go socket.writeHandler()
}

func (s *WebServer) ProvideMessageHandler(handler interfaces.MessageHandler) {
	s.handler = handler
}

func (s *WebServer) ProvideStatusProvider(status interfaces.StatusProvider) {
	s.status = status
}

func (s *WebServer) Handler() http.Handler { return s.mux }

func (s *WebServer) appendSocket(socket *Socket) {
	s.socketsRw.Lock()
	defer s.socketsRw.Unlock()
	s.sockets = append(s.sockets, socket)
}

func (s *WebServer) removeSocket(k *Socket) {
	s.socketsRw.Lock()
	defer s.socketsRw.Unlock()

	for i, sk := range s.sockets {
		if sk == k {
			s.sockets = append(s.sockets[:i:i], s.sockets[i+1:]...)
			break
		}
	}
}

func (s *WebServer) Clients() int {
	s.socketsRw.RLock()
	defer s.socketsRw.RUnlock()
	return len(s.sockets)
}

// Serve listens on the configured address until ctx is done.
func (s *WebServer) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("web: %w", err)
	}
	return s.ServeListener(ctx, ln)
}

func (s *WebServer) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.Close()
	}()

	log.Printf("web: listening on %s\n", ln.Addr())
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close disconnects every socket and stops broadcasting.
func (s *WebServer) Close() {
	s.once.Do(func() { close(s.stop) })

	s.socketsRw.RLock()
	sockets := append([]*Socket(nil), s.sockets...)
	s.socketsRw.RUnlock()

	for _, k := range sockets {
		k.cancel()
		_ = k.conn.Close()
	}
}

// NotifyValue broadcasts a reading to all sockets as decimal text.
func (s *WebServer) NotifyValue(v uint32) {
	s.Broadcast(strconv.FormatUint(uint64(v), 10))
}

func (s *WebServer) Broadcast(msg string) {
	select {
	case s.q <- msg:
	case <-s.stop:
	}
}

func (s *WebServer) StatusModel() StatusModel {
	m := StatusModel{Clients: s.Clients()}
	if s.status != nil {
		m.Relay = s.status.StatusModel()
	}
	return m
}

func (s *WebServer) statusMessage() (string, error) {
	b, err := json.Marshal(s.StatusModel())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *WebServer) handleBroadcast() {
	// read updates from the broadcast channel:
	for {
		var msg string
		select {
		case msg = <-s.q:
		case <-s.stop:
			return
		}

		s.socketsRw.RLock()
		sockets := s.sockets
		s.socketsRw.RUnlock()

		// broadcast to all connected sockets:
		for _, k := range sockets {
			k.Send(msg)
		}
	}
}

func NewSocket(s *WebServer, req *http.Request, conn net.Conn) *Socket {
	ctx, cancel := context.WithCancel(context.Background())
	return &Socket{
		ws:     s,
		req:    req,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		q:      make(chan string, socketQueueSize),
	}
}

// Send queues a text frame. A socket that falls behind loses messages rather
// than stalling the others.
func (k *Socket) Send(msg string) {
	select {
	case k.q <- msg:
		if n := k.dropped.Swap(0); n > 0 {
			log.Printf("web: %s: dropped %d messages\n", k.conn.RemoteAddr(), n)
		}
	case <-k.ctx.Done():
	default:
		k.dropped.Add(1)
	}
}

func (k *Socket) readHandler() {
	// the reader is in control of the lifetime of the socket:
	defer func() {
		k.cancel()
		_ = k.conn.Close()

		// remove self from sockets array:
		k.ws.removeSocket(k)
		log.Printf("web: %s disconnected (%d clients)\n", k.conn.RemoteAddr(), k.ws.Clients())
	}()

	controlHandler := wsutil.ControlFrameHandler(k.conn, ws.StateServerSide)
	r := &wsutil.Reader{
		Source:         k.conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: controlHandler,
	}

	for {
		hdr, err := r.NextFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && k.ctx.Err() == nil {
				log.Println(fmt.Errorf("web: error reading next websocket frame: %w", err))
			}
			return
		}
		if hdr.OpCode.IsControl() {
			if err := controlHandler(hdr, r); err != nil {
				// ClosedError on a close frame:
				return
			}
			continue
		}
		if hdr.OpCode != ws.OpText {
			if err := r.Discard(); err != nil {
				log.Println(fmt.Errorf("web: discard: %w", err))
				return
			}
			continue
		}

		payload, err := io.ReadAll(r)
		if err != nil {
			log.Println(fmt.Errorf("web: error reading text frame: %w", err))
			return
		}
		k.handleText(string(payload))
	}
}

func (k *Socket) handleText(text string) {
	if k.ws.handler == nil {
		log.Println("web: no message handler provided!")
		return
	}

	if err := k.ws.handler.HandleMessage(k.ctx, text); err != nil {
		log.Printf("web: %s: %v\n", k.conn.RemoteAddr(), err)
		k.Send("error: " + err.Error())
		return
	}

	// let every client see the new frequency:
	if msg, err := k.ws.statusMessage(); err == nil {
		k.ws.Broadcast(msg)
	}
}

func (k *Socket) writeHandler() {
	w := wsutil.NewWriter(k.conn, ws.StateServerSide, ws.OpText)

	// wait for messages on the channel:
	for {
		var msg string
		select {
		case msg = <-k.q:
		case <-k.ctx.Done():
			return
		}

		if _, err := io.WriteString(w, msg); err != nil {
			log.Println(err)
			k.cancel()
			_ = k.conn.Close()
			return
		}
		if err := w.Flush(); err != nil {
			log.Println(err)
			k.cancel()
			_ = k.conn.Close()
			return
		}
	}
}
