package rca

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPipelineCache_SingleBuildUnderConcurrency(t *testing.T) {
	cache := newPipelineCache()
	key := PipelineKey{Kind: ProviderFake}

	var builds int32
	build := func(PipelineKey) (*Pipeline, error) {
		atomic.AddInt32(&builds, 1)
		time.Sleep(20 * time.Millisecond) // widen the race window
		return NewPipeline(echoBackend{}, "", false), nil
	}

	const callers = 10
	results := make([]*Pipeline, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := cache.getOrBuild(key, build)
			if err != nil {
				t.Errorf("getOrBuild failed: %v", err)
				return
			}
			results[i] = p
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&builds); got != 1 {
		t.Errorf("expected exactly 1 build, got %d", got)
	}
	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatal("callers received different pipeline instances")
		}
	}
}

func TestPipelineCache_FailedBuildNotCached(t *testing.T) {
	cache := newPipelineCache()
	key := PipelineKey{Kind: ProviderOpenAI}

	calls := 0
	build := func(PipelineKey) (*Pipeline, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("transient failure")
		}
		return NewPipeline(echoBackend{}, "", false), nil
	}

	if _, err := cache.getOrBuild(key, build); err == nil {
		t.Fatal("first build should fail")
	}
	if _, err := cache.getOrBuild(key, build); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 build attempts, got %d", calls)
	}
	if cache.size() != 1 {
		t.Errorf("expected 1 cached pipeline, got %d", cache.size())
	}
}

func TestPipelineCache_KeysIndependent(t *testing.T) {
	cache := newPipelineCache()

	build := func(PipelineKey) (*Pipeline, error) {
		return NewPipeline(echoBackend{}, "", false), nil
	}

	plain, _ := cache.getOrBuild(PipelineKey{Kind: ProviderFake}, build)
	withTools, _ := cache.getOrBuild(PipelineKey{Kind: ProviderFake, ToolsBound: true}, build)
	if plain == withTools {
		t.Error("tool-bound and plain pipelines must be distinct entries")
	}
	if cache.size() != 2 {
		t.Errorf("expected 2 cached pipelines, got %d", cache.size())
	}
}

func TestPipelineCache_Reset(t *testing.T) {
	cache := newPipelineCache()
	key := PipelineKey{Kind: ProviderFake}

	calls := 0
	build := func(PipelineKey) (*Pipeline, error) {
		calls++
		return NewPipeline(echoBackend{}, "", false), nil
	}

	first, _ := cache.getOrBuild(key, build)
	cache.reset()
	second, _ := cache.getOrBuild(key, build)

	if calls != 2 {
		t.Errorf("expected a rebuild after reset, got %d builds", calls)
	}
	if first == second {
		t.Error("reset must drop the cached instance")
	}
}

func TestPipelineKey_String(t *testing.T) {
	if got := (PipelineKey{Kind: ProviderOpenAI}).String(); got != "openai" {
		t.Errorf("unexpected key: %q", got)
	}
	if got := (PipelineKey{Kind: ProviderOpenAI, ToolsBound: true}).String(); got != "openai+tools" {
		t.Errorf("unexpected key: %q", got)
	}
}
