package circuitbreaker

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

func TestExecuteOpensAfterConsecutiveFailures(t *testing.T) {
	cb, err := New(DefaultConfig("test"), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	boom := errors.New("platform down")
	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, boom
		}); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want %v", i, err, boom)
		}
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s, want open after 3 consecutive failures", cb.GetState())
	}

	_, err = cb.Execute(context.Background(), func() (interface{}, error) {
		t.Fatal("open circuit must not invoke the function")
		return nil, nil
	})
	if err != gobreaker.ErrOpenState {
		t.Fatalf("err = %v, want %v", err, gobreaker.ErrOpenState)
	}
}

func TestManagerKeepsGroupsIndependent(t *testing.T) {
	mgr := NewManager(zap.NewNop())

	sched, err := mgr.GetOrCreate("scheduling", DefaultConfig("platform"))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	enroll, err := mgr.GetOrCreate("enrollment", DefaultConfig("platform"))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	again, err := mgr.GetOrCreate("scheduling", DefaultConfig("platform"))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if again != sched {
		t.Error("GetOrCreate must return the same breaker for the same group")
	}

	boom := errors.New("platform down")
	for i := 0; i < 3; i++ {
		sched.Execute(context.Background(), func() (interface{}, error) { return nil, boom })
	}

	if sched.GetState() != StateOpen {
		t.Errorf("scheduling state = %s, want open", sched.GetState())
	}
	if enroll.GetState() != StateClosed {
		t.Errorf("enrollment state = %s, want closed", enroll.GetState())
	}

	statuses := mgr.GetHealthStatus()
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	byName := make(map[string]HealthStatus, len(statuses))
	for _, s := range statuses {
		byName[s.Name] = s
	}
	if byName["scheduling"].Healthy {
		t.Error("scheduling group should report unhealthy")
	}
	if !byName["enrollment"].Healthy {
		t.Error("enrollment group should report healthy")
	}
}
