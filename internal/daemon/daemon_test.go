package daemon_test

import (
	"strings"
	"testing"

	"stemsense/internal/daemon"
	"stemsense/internal/testsupport"
)

func TestDaemonStartAndStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}

	status := d.Status(t.Context())
	if !status.Running {
		t.Fatal("daemon should report running after Start")
	}
	if status.LockFilePath == "" || status.TaskDBPath == "" {
		t.Fatalf("status paths missing: %+v", status)
	}

	d.Stop()
	if d.Status(t.Context()).Running {
		t.Fatal("daemon should report stopped after Stop")
	}
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	first, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })
	if err := first.Start(t.Context()); err != nil {
		t.Fatalf("start first: %v", err)
	}

	second, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	err = second.Start(t.Context())
	if err == nil {
		t.Fatal("second instance should fail to start")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	sent, detail, err := d.TestNotification(t.Context())
	if err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if sent {
		t.Fatal("no notification should be sent without a topic")
	}
	if detail != "ntfy topic not configured" {
		t.Fatalf("detail = %q", detail)
	}
}
