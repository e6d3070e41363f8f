package browser

import (
	"net"
	"slices"
	"strconv"
	"testing"
)

func TestArgs(t *testing.T) {
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 9333, ProfileDir: "/p", CrashDumpDir: "/c"})
	args := l.args()

	for _, want := range []string{
		"--remote-debugging-port=9333",
		"--remote-debugging-address=127.0.0.1",
		"--user-data-dir=/p",
		"--autoplay-policy=no-user-gesture-required",
		"--crash-dumps-dir=/c",
	} {
		if !slices.Contains(args, want) {
			t.Errorf("missing %s in %v", want, args)
		}
	}
	if args[len(args)-1] != "about:blank" {
		t.Fatalf("start URL = %q, want about:blank last", args[len(args)-1])
	}
	if slices.Contains(args, "--mute-audio") {
		t.Fatal("headful launch must not mute audio")
	}

	l = NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: 9333, StartURL: "https://x.test", Headless: true})
	args = l.args()
	if !slices.Contains(args, "--headless=new") || args[len(args)-1] != "https://x.test" {
		t.Fatalf("headless args = %v", args)
	}
}

func TestLaunchSkipsWhenListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	l := NewLauncher(Config{CDPAddress: "127.0.0.1", CDPPort: port})
	if err := l.Launch(t.Context()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if l.Running() {
		t.Fatal("launcher should not own a process when the port is taken")
	}
	if got := l.endpoint(); got != "127.0.0.1:"+strconv.Itoa(port) {
		t.Fatalf("endpoint = %q", got)
	}
}
