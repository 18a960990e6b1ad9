package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/darrayctl/internal/client"
	"github.com/danmuck/darrayctl/internal/protocol"
	"github.com/danmuck/darrayctl/internal/testutil/coordtest"
	"github.com/danmuck/darrayctl/internal/testutil/testlog"
)

func runScript(t *testing.T, srv *coordtest.Server, script string) string {
	t.Helper()
	cfg := client.DefaultConfig()
	cfg.Transport.Host = srv.Host
	cfg.Transport.Port = srv.Port
	cfg.Transport.Timeout = 2 * time.Second
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	var out bytes.Buffer
	if err := NewShell(c, strings.NewReader(script), &out).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	return out.String()
}

func TestShellCommands(t *testing.T) {
	testlog.Start(t)
	srv := coordtest.Start(t, func(env protocol.Envelope) string {
		if env.Kind() == protocol.KindGetResult {
			return "ERROR: not found"
		}
		return "OK"
	})

	out := runScript(t, srv, strings.Join([]string{
		"create-int ints 5",
		"create-double doubles 3",
		"apply doubles example1",
		"",
		"get nothing",
		"exit",
		"get never-sent",
	}, "\n"))

	for _, want := range []string{
		"Create array response: OK",
		"Apply operation response: OK",
		"Get result response: ERROR: not found",
		"Goodbye!",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}

	got := srv.Received()
	if len(got) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(got))
	}
	ints, err := protocol.PayloadAs[protocol.CreateArray](got[0])
	if err != nil {
		t.Fatalf("decode ints: %v", err)
	}
	if ints.ArrayID != "ints" || len(ints.Ints) != 5 {
		t.Fatalf("unexpected int array: %+v", ints)
	}
	for _, v := range ints.Ints {
		if v < 1 || v > 1000 {
			t.Fatalf("int out of range: %d", v)
		}
	}
	doubles, err := protocol.PayloadAs[protocol.CreateArray](got[1])
	if err != nil {
		t.Fatalf("decode doubles: %v", err)
	}
	if doubles.DataType != protocol.DataTypeDouble || len(doubles.Doubles) != 3 {
		t.Fatalf("unexpected double array: %+v", doubles)
	}
}

func TestShellUsageAndErrors(t *testing.T) {
	testlog.Start(t)
	srv := coordtest.Start(t, func(env protocol.Envelope) string { return "OK" })

	out := runScript(t, srv, "create-int a\ncreate-double a x\napply a\nget\nbogus\nhelp\n")
	for _, want := range []string{
		"Usage: create-int <array_id> <size>",
		`Error: invalid size "x"`,
		"Usage: apply <array_id> <operation>",
		"Usage: get <array_id>",
		"Unknown command. Type 'help' for usage.",
		"apply <array_id> <operation> - Apply operation (example1 or example2)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
	if n := len(srv.Received()); n != 0 {
		t.Fatalf("malformed commands reached the wire: %d", n)
	}
}

func TestShellReportsTransportErrors(t *testing.T) {
	testlog.Start(t)
	cfg := client.DefaultConfig()
	cfg.Transport.Host = "127.0.0.1"
	cfg.Transport.Port = coordtest.UnusedPort(t)
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	var out bytes.Buffer
	if err := NewShell(c, strings.NewReader("get a1"), &out).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "Error: transport: connect failed") {
		t.Fatalf("expected connect error, got:\n%s", out.String())
	}
}

func TestShellStopsOnCancelAtIdlePrompt(t *testing.T) {
	testlog.Start(t)
	cfg := client.DefaultConfig()
	cfg.Transport.Host = "127.0.0.1"
	cfg.Transport.Port = coordtest.UnusedPort(t)
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	in, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() {
		done <- NewShell(c, in, &out).Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("shell still waiting on input after cancel")
	}
}

func TestResolveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	if err := os.WriteFile(path, []byte("host = \"file-host\"\nport = 7000\ntimeout = \"3s\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := resolveConfig(path, 0, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Transport.Address() != "file-host:7000" || cfg.Transport.Timeout != 3*time.Second {
		t.Fatalf("unexpected file config: %+v", cfg.Transport)
	}

	cfg, err = resolveConfig(path, time.Second, []string{"localhost", "5000"})
	if err != nil {
		t.Fatalf("resolve args: %v", err)
	}
	if cfg.Transport.Address() != "localhost:5000" || cfg.Transport.Timeout != time.Second {
		t.Fatalf("args must override file: %+v", cfg.Transport)
	}

	if _, err := resolveConfig("", 0, []string{"localhost"}); err == nil {
		t.Fatalf("expected missing port error")
	}
	if _, err := resolveConfig("", 0, []string{"localhost", "http"}); err == nil {
		t.Fatalf("expected invalid port error")
	}
}
