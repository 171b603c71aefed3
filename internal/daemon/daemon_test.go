package daemon_test

import (
	"context"
	"testing"

	"songreel/internal/daemon"
	"songreel/internal/logging"
	"songreel/internal/testsupport"
	"songreel/internal/workflow"
)

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.PollInterval = 1
	store := testsupport.MustOpenStore(t, cfg)

	manager, err := workflow.NewManager(cfg, store, nil, logging.NewNop())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	d, err := daemon.New(cfg, store, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t)
	t.Cleanup(func() { d.Stop() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Running() {
		t.Fatal("expected daemon to report running")
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon to report stopped")
	}
}

func TestDaemonRejectsMissingDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, logging.NewNop(), nil); err == nil {
		t.Fatal("expected construction error")
	}
}
