package services

import (
	"context"
	"testing"

	"securedocs/config"
	"securedocs/repositories"
)

func TestNewContainerInitializesServicesAndRegistersCleanup(t *testing.T) {
	previous := defaultCleanupService
	defer SetCleanupService(previous)

	SetCleanupService(nil)
	container := NewContainer(config.Default(), repositories.Container{}, nil)

	if container == nil {
		t.Fatalf("expected container instance")
	}
	if container.Hierarchy == nil || container.Shares == nil || container.Nested == nil || container.Archive == nil ||
		container.Copies == nil || container.Previews == nil || container.Checks == nil || container.Notifier == nil || container.Cleanup == nil {
		t.Fatalf("expected all services to be initialized")
	}
	if defaultCleanupService != container.Cleanup {
		t.Fatalf("expected cleanup service to be registered as default")
	}
}

func TestStartCleanupWorkersNoopWhenServiceMissing(t *testing.T) {
	previous := defaultCleanupService
	defer SetCleanupService(previous)

	SetCleanupService(nil)
	if err := StartCleanupWorkers(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
