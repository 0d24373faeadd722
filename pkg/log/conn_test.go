package log

import (
	"bytes"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTranscriptWrap(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewTranscript(&buf)

	server, client := net.Pipe()
	defer client.Close()

	conn := tr.Wrap(server, "conn-1")
	defer conn.Close()

	go func() {
		client.Write([]byte("ping"))
		b := make([]byte, 4)
		io.ReadFull(client, b)
	}()

	b := make([]byte, 4)
	if _, err := io.ReadFull(conn, b); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if _, err := conn.Write([]byte("pong")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `conn-1 < "ping"`) {
		t.Errorf("transcript missing read entry: %q", out)
	}
	if !strings.Contains(out, `conn-1 > "pong"`) {
		t.Errorf("transcript missing write entry: %q", out)
	}
}

func TestOpenTranscript(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "transcript.log")

	tr, err := OpenTranscript(path)
	if err != nil {
		t.Fatalf("OpenTranscript() error = %v", err)
	}
	if err := tr.record("id", ">", []byte("hello")); err != nil {
		t.Fatalf("record() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `id > "hello"`) {
		t.Errorf("file content = %q", data)
	}
}

func TestOpenTranscript_BadPath(t *testing.T) {
	t.Parallel()

	if _, err := OpenTranscript(filepath.Join(t.TempDir(), "missing", "x.log")); err == nil {
		t.Error("OpenTranscript() into missing dir succeeded; want error")
	}
}
