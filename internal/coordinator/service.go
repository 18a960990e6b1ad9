package coordinator

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/darrayctl/internal/logging"
	"github.com/danmuck/darrayctl/internal/observability"
	"github.com/danmuck/darrayctl/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const errorReplyPrefix = "ERROR: "

type Config struct {
	ID           string
	ListenAddr   string
	AdminAddr    string
	AdminToken   string
	CORSOrigins  []string
	Workers      int
	ReadTimeout  time.Duration
	MaxLineBytes int
}

func DefaultConfig() Config {
	return Config{
		ID:           protocol.ParticipantMaster,
		ListenAddr:   ":5000",
		AdminAddr:    "",
		Workers:      4,
		ReadTimeout:  30 * time.Second,
		MaxLineBytes: protocol.DefaultMaxLineBytes,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.ID) == "" {
		c.ID = def.ID
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.Workers < 1 {
		c.Workers = def.Workers
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = def.MaxLineBytes
	}
	return c
}

// Service serves the line protocol and, when AdminAddr is set, the admin
// HTTP routes.
type Service struct {
	cfg     Config
	store   *Store
	logger  zerolog.Logger
	router  *gin.Engine
	started time.Time

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	active  atomic.Int64
	served  atomic.Uint64
}

func NewService(cfg Config) *Service {
	cfg = cfg.withDefaults()
	observability.RegisterMetrics()
	s := &Service{
		cfg:     cfg,
		store:   NewStore(cfg.Workers),
		logger:  logging.Component("coordinator").With().Str("coordinator", cfg.ID).Logger(),
		started: time.Now(),
		conns:   make(map[net.Conn]struct{}),
	}
	s.router = s.newRouter()
	return s
}

func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) Store() *Store {
	return s.store
}

// Run listens on both configured addresses and blocks until ctx ends or a
// listener fails.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("coordinator listening")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	adminErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.AdminAddr); addr != "" {
		go func() {
			adminErr <- s.serveAdmin(ctx, addr)
		}()
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			cancel()
			<-serveErr
			return err
		}
		return <-serveErr
	}
}

// Serve accepts connections on ln until ctx ends. Each connection carries
// exactly one request.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.closeAllConns()
			_ = ln.Close()
		case <-done:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		go s.handleConn(conn)
	}
}

func (s *Service) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)

	logger := s.logger.With().
		Str("conn", uuid.NewString()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()
	active := s.active.Add(1)
	defer s.active.Add(-1)
	logger.Debug().Int64("active", active).Msg("client connected")

	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	env, err := protocol.ReadEnvelope(bufio.NewReader(conn), s.cfg.MaxLineBytes)
	if err != nil {
		// a client that hung up without sending gets no reply
		if errors.Is(err, protocol.ErrDecode) || errors.Is(err, protocol.ErrLineTooLarge) {
			logger.Warn().Err(err).Msg("malformed request")
			s.writeReply(logger, conn, errorReplyPrefix+err.Error())
			observability.RecordCoordinatorRequest("invalid", "error", 0)
			return
		}
		logger.Debug().Err(err).Msg("read request")
		return
	}

	start := time.Now()
	reply, status := s.Handle(env)
	observability.RecordCoordinatorRequest(env.Kind().String(), status, time.Since(start))
	logger.Debug().
		Str("kind", env.Kind().String()).
		Str("from", env.Sender()).
		Str("status", status).
		Dur("duration", time.Since(start)).
		Msg("request handled")
	s.writeReply(logger, conn, reply)
	s.served.Add(1)
}

func (s *Service) writeReply(logger zerolog.Logger, conn net.Conn, reply string) {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.ReadTimeout))
	if _, err := conn.Write([]byte(reply + "\n")); err != nil {
		logger.Warn().Err(err).Msg("write reply")
	}
}

// Handle answers one request envelope. It returns the reply line without a
// terminator and a short status label.
func (s *Service) Handle(env protocol.Envelope) (string, string) {
	if !env.Kind().ClientFacing() {
		return errorReplyPrefix + "unsupported kind " + env.Kind().String(), "error"
	}
	payload, err := protocol.DecodePayload(env)
	if err != nil {
		return errorReplyPrefix + err.Error(), "error"
	}

	switch p := payload.(type) {
	case protocol.CreateArray:
		if s.store.Create(p) {
			s.logger.Info().Str("array", p.ArrayID).Msg("array replaced")
		}
		observability.SetCoordinatorArrays(s.store.Len())
		return s.complete(env, protocol.OperationComplete{
			Status:  protocol.StatusCreated,
			ArrayID: p.ArrayID,
		})
	case protocol.ApplyOperation:
		if err := s.store.Apply(p.ArrayID, p.Operation); err != nil {
			return s.failure(err)
		}
		return s.complete(env, protocol.OperationComplete{
			Status:  protocol.StatusProcessing,
			ArrayID: p.ArrayID,
		})
	case protocol.GetResult:
		result, err := s.store.Result(p.ArrayID)
		if err != nil {
			return s.failure(err)
		}
		return s.complete(env, protocol.OperationComplete{
			Status:  protocol.StatusComplete,
			ArrayID: p.ArrayID,
			Result:  result,
		})
	default:
		return errorReplyPrefix + "unsupported kind " + env.Kind().String(), "error"
	}
}

func (s *Service) complete(req protocol.Envelope, p protocol.OperationComplete) (string, string) {
	reply, err := protocol.Build(protocol.KindOperationComplete, s.cfg.ID, req.Sender(), p)
	if err == nil {
		var line []byte
		if line, err = protocol.Encode(reply); err == nil {
			return string(line), p.Status
		}
	}
	s.logger.Error().Err(err).Msg("encode reply")
	return errorReplyPrefix + "internal error", "error"
}

func (s *Service) failure(err error) (string, string) {
	switch {
	case errors.Is(err, ErrArrayNotFound):
		return errorReplyPrefix + "not found", "not_found"
	case errors.Is(err, ErrNoResult):
		return errorReplyPrefix + "no result", "no_result"
	default:
		return errorReplyPrefix + err.Error(), "error"
	}
}

func (s *Service) serveAdmin(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info().Str("addr", addr).Msg("admin listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Service) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Service) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}
