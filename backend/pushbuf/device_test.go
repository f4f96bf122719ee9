package pushbuf

import (
	"bytes"
	"io"
	"testing"
	"time"
)

func TestDeviceReadAfterPush(t *testing.T) {
	d := NewDevice()
	d.Push([]byte("hello"))

	buf := make([]byte, 16)
	n, err := d.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("read %q, want %q", buf[:n], "hello")
	}
}

func TestDeviceReadBlocksUntilPush(t *testing.T) {
	d := NewDevice()

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, err := d.Read(buf)
		if err != nil {
			got <- nil
			return
		}
		got <- buf[:n]
	}()

	// Give the reader a moment to block.
	time.Sleep(20 * time.Millisecond)
	d.Push([]byte("late"))

	select {
	case b := <-got:
		if string(b) != "late" {
			t.Errorf("read %q, want %q", b, "late")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader never woke up")
	}
}

func TestDeviceEOFAfterDrain(t *testing.T) {
	d := NewDevice()
	d.Push([]byte("tail"))
	d.CloseWrite()

	all, err := io.ReadAll(d)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(all, []byte("tail")) {
		t.Errorf("ReadAll = %q, want %q", all, "tail")
	}

	// Subsequent reads keep returning EOF.
	if _, err := d.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("Read after EOF = %v, want io.EOF", err)
	}
}

func TestDevicePushAfterCloseIsDropped(t *testing.T) {
	d := NewDevice()
	d.CloseWrite()
	d.Push([]byte("dropped"))

	if _, err := d.Read(make([]byte, 8)); err != io.EOF {
		t.Errorf("Read = %v, want io.EOF", err)
	}
}

func TestDeviceCloseWriteUnblocksReader(t *testing.T) {
	d := NewDevice()

	errCh := make(chan error, 1)
	go func() {
		_, err := d.Read(make([]byte, 8))
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	d.CloseWrite()

	select {
	case err := <-errCh:
		if err != io.EOF {
			t.Errorf("Read = %v, want io.EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader never unblocked")
	}
}

func TestDeviceBytesAvailable(t *testing.T) {
	d := NewDevice()
	d.Push([]byte("abcd"))
	d.Push([]byte("ef"))

	if got := d.BytesAvailable(); got != 6 {
		t.Errorf("BytesAvailable = %d, want 6", got)
	}
}
