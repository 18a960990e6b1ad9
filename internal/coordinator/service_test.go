package coordinator

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/darrayctl/internal/client"
	"github.com/danmuck/darrayctl/internal/protocol"
	"github.com/danmuck/darrayctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

func startService(t *testing.T) (*Service, *client.Client) {
	t.Helper()
	svc := NewService(Config{ID: "master", Workers: 2, ReadTimeout: 2 * time.Second})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("serve: %v", err)
		}
	})

	addr := ln.Addr().(*net.TCPAddr)
	cfg := client.DefaultConfig()
	cfg.Transport.Host = "127.0.0.1"
	cfg.Transport.Port = addr.Port
	cfg.Transport.Timeout = 2 * time.Second
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return svc, c
}

func mustOutcome(t *testing.T, r client.Reply) protocol.OperationComplete {
	t.Helper()
	out, err := r.Outcome()
	if err != nil {
		t.Fatalf("reply %q: %v", r.Raw, err)
	}
	return out
}

func TestCreateApplyGetDoubleArray(t *testing.T) {
	testlog.Start(t)
	_, c := startService(t)
	ctx := context.Background()

	r, err := c.CreateDoubleArray(ctx, "d1", []float64{0, 2.0, 3.14159})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	out := mustOutcome(t, r)
	if out.Status != protocol.StatusCreated || out.ArrayID != "d1" {
		t.Fatalf("unexpected create outcome: %+v", out)
	}
	env, err := r.Envelope()
	if err != nil {
		t.Fatalf("reply envelope: %v", err)
	}
	if env.Sender() != "master" || env.Recipient() != "client" {
		t.Fatalf("reply addressed %s->%s", env.Sender(), env.Recipient())
	}

	r, err = c.ApplyOperation(ctx, "d1", OpExample1)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out := mustOutcome(t, r); out.Status != protocol.StatusProcessing {
		t.Fatalf("unexpected apply outcome: %+v", out)
	}

	r, err = c.GetResult(ctx, "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	out = mustOutcome(t, r)
	if out.Status != protocol.StatusComplete {
		t.Fatalf("unexpected get outcome: %+v", out)
	}
	values, err := out.ResultValues()
	if err != nil {
		t.Fatalf("result values: %v", err)
	}
	if len(values) != 3 || values[0] != 1 || values[1] != example1(2.0) || values[2] != example1(3.14159) {
		t.Fatalf("unexpected result: %v", values)
	}
}

func TestCreateApplyGetIntArray(t *testing.T) {
	testlog.Start(t)
	_, c := startService(t)
	ctx := context.Background()

	if _, err := c.CreateIntArray(ctx, "i1", []int64{1, 3, 500, 1001}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := c.ApplyOperation(ctx, "i1", OpExample2); err != nil {
		t.Fatalf("apply: %v", err)
	}
	r, err := c.GetResult(ctx, "i1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	out := mustOutcome(t, r)
	var got []int64
	if err := json.Unmarshal(out.Result, &got); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	want := []int64{1, 3, 6, 1001}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d got %d want %d", i, got[i], want[i])
		}
	}
}

func TestErrorReplies(t *testing.T) {
	testlog.Start(t)
	_, c := startService(t)
	ctx := context.Background()

	r, err := c.GetResult(ctx, "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Raw != "ERROR: not found" {
		t.Fatalf("unexpected reply: %q", r.Raw)
	}

	if _, err := c.CreateIntArray(ctx, "i1", []int64{1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	r, err = c.GetResult(ctx, "i1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Raw != "ERROR: no result" {
		t.Fatalf("unexpected reply: %q", r.Raw)
	}

	r, err = c.ApplyOperation(ctx, "i1", OpExample1)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !r.IsError() || !strings.Contains(r.Raw, "data type") {
		t.Fatalf("expected data type error, got %q", r.Raw)
	}

	r, err = c.Send(ctx, protocol.Heartbeat{})
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if r.Raw != "ERROR: unsupported kind HEARTBEAT" {
		t.Fatalf("unexpected reply: %q", r.Raw)
	}
}

func TestMalformedLineGetsErrorReply(t *testing.T) {
	testlog.Start(t)
	_, c := startService(t)

	addr := c.Config().Transport.Address()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte("{\"type\":\"GET_RESULT\"}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(line, "ERROR: ") {
		t.Fatalf("expected error reply, got %q", line)
	}
}

func TestHandleEnvelopeWithoutTransport(t *testing.T) {
	testlog.Start(t)
	svc := NewService(Config{})
	if svc.Config().ListenAddr != ":5000" || svc.Config().Workers != 4 {
		t.Fatalf("defaults not applied: %+v", svc.Config())
	}
	env, err := protocol.Build(protocol.KindCreateArray, "c9", "master", protocol.NewIntArray("x", []int64{2}))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	reply, status := svc.Handle(env)
	if status != protocol.StatusCreated {
		t.Fatalf("unexpected status %q reply %q", status, reply)
	}
	decoded, err := protocol.Decode([]byte(reply))
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if decoded.Recipient() != "c9" || decoded.Kind() != protocol.KindOperationComplete {
		t.Fatalf("unexpected reply envelope: %s -> %s", decoded.Kind(), decoded.Recipient())
	}
}

func TestAdminRoutes(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	svc := NewService(Config{ID: "master"})
	svc.Store().Create(protocol.NewIntArray("a1", []int64{3, 4}))
	if err := svc.Store().Apply("a1", OpExample2); err != nil {
		t.Fatalf("apply: %v", err)
	}

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		svc.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/health")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"arrays":1`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}

	rec = get("/arrays")
	var list struct {
		Arrays []ArrayInfo `json:"arrays"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("arrays body: %v", err)
	}
	if len(list.Arrays) != 1 || list.Arrays[0].ID != "a1" || !list.Arrays[0].HasResult {
		t.Fatalf("unexpected arrays: %+v", list.Arrays)
	}

	rec = get("/arrays/a1")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"result":[3,4]`) {
		t.Fatalf("array: %d %s", rec.Code, rec.Body.String())
	}

	if rec = get("/arrays/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = get("/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "darray_admin_http_requests_total") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestAdminTokenGuardsArrays(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	svc := NewService(Config{ID: "master", AdminToken: "s3cret"})

	do := func(path, token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		svc.Router().ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("/health", ""); code != http.StatusOK {
		t.Fatalf("health must stay open: %d", code)
	}
	if code := do("/arrays", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := do("/arrays", "s3cret"); code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", code)
	}
	if code := do("/arrays/none", "s3cret"); code != http.StatusNotFound {
		t.Fatalf("expected 404 with token, got %d", code)
	}
}

type failingListener struct {
	net.Listener
	closes atomic.Int32
}

var errAcceptFailed = errors.New("accept failed")

func (l *failingListener) Accept() (net.Conn, error) {
	return nil, errAcceptFailed
}

func (l *failingListener) Close() error {
	l.closes.Add(1)
	return l.Listener.Close()
}

func TestServeReturnsAcceptErrorAndReleasesWatcher(t *testing.T) {
	testlog.Start(t)
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ln := &failingListener{Listener: inner}
	svc := NewService(Config{ID: "master"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Serve(ctx, ln); !errors.Is(err, errAcceptFailed) {
		t.Fatalf("expected accept error, got %v", err)
	}

	cancel()
	time.Sleep(50 * time.Millisecond)
	if n := ln.closes.Load(); n != 1 {
		t.Fatalf("listener closed %d times; shutdown watcher outlived Serve", n)
	}
}
