package ipcserver

import (
	"bufio"
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nudge-sh/nudge/internal/cache"
	"github.com/nudge-sh/nudge/internal/config"
	"github.com/nudge-sh/nudge/pkg/protocol"
)

// readTimeout bounds how long the server waits for a frame header once a
// connection is accepted (spec.md §6.1 doesn't name a figure; 30s matches
// the generous end of the request-timeout hierarchy so a slow/confused
// client can't pin a handler goroutine forever).
const readTimeout = 30 * time.Second

// Handler processes one decoded completion/diagnosis request. Implemented
// by *arbiter.Arbiter; declared as an interface here so ipcserver doesn't
// import arbiter (arbiter already imports several packages ipcserver would
// otherwise transitively depend on twice).
type Handler interface {
	Handle(ctx context.Context, req protocol.Request) protocol.Response
}

// Server is the Unix-socket IPC server.
type Server struct {
	store      *config.Store
	cache      *cache.Cache
	handler    Handler
	socketPath string
	pidPath    string
	version    string

	mu           sync.Mutex
	listener     net.Listener
	wg           sync.WaitGroup
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New builds a Server. version is reported by the status control op.
func New(store *config.Store, c *cache.Cache, handler Handler, socketPath, pidPath, version string) *Server {
	return &Server{
		store:      store,
		cache:      c,
		handler:    handler,
		socketPath: socketPath,
		pidPath:    pidPath,
		version:    version,
		shutdown:   make(chan struct{}),
	}
}

// Serve binds the socket, writes the PID file, and accepts connections
// until ctx is cancelled or Shutdown is called.
func (s *Server) Serve(ctx context.Context) error {
	if err := writePID(s.pidPath); err != nil {
		return err
	}
	defer removePID(s.pidPath)

	l, err := listen(s.socketPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-s.shutdown:
			_ = l.Close()
		}
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			case <-s.shutdown:
				s.wg.Wait()
				return nil
			default:
				log.Warn().Err(err).Msg("ipcserver: accept failed")
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Shutdown stops accepting new connections and waits for in-flight ones to
// drain.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
	s.wg.Wait()
}

func (s *Server) handleConn(parentCtx context.Context, conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		body, err := readFrame(r)
		if err != nil {
			return
		}

		req, err := decodeRequest(body)
		if err != nil {
			resp := protocol.Response{OK: false, ErrorKind: "request_malformed", Message: err.Error()}
			_ = s.reply(conn, resp)
			return
		}

		resp := s.dispatch(parentCtx, req)

		if err := s.reply(conn, resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req protocol.Request) protocol.Response {
	switch req.Op {
	case "status":
		return protocol.Response{OK: true, Running: true, PID: os.Getpid(), Version: s.version}
	case "shutdown":
		go s.Shutdown()
		return protocol.Response{OK: true}
	case "invalidate_context":
		cwdHash := ""
		if req.CWD != "" {
			cwdHash = cache.HashCWD(req.CWD)
		}
		n := s.cache.InvalidateByContext(cwdHash, "")
		log.Debug().Int("invalidated", n).Msg("ipcserver: invalidate_context")
		return protocol.Response{OK: true}
	default:
		return s.handler.Handle(ctx, req)
	}
}

func (s *Server) reply(conn net.Conn, resp protocol.Response) error {
	body, err := encodeResponse(resp)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(readTimeout))
	return writeFrame(conn, body)
}
