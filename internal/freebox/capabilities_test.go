package freebox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testDetector(t *testing.T, base string) *Detector {
	t.Helper()
	return NewDetector(zerolog.Nop(), NewClient(zerolog.Nop(), base, time.Second))
}

func TestClassifyModelOrderSensitive(t *testing.T) {
	cases := map[string]Family{
		"Freebox Pop":           FamilyPop,
		"fbxgw8-r1/full":        FamilyPop, // contains the generic fbxgw marker too
		"fbxgw9-r1/full":        FamilyUltra,
		"fbxgw7-r1/full":        FamilyDelta,
		"fbxgw-r2/full":         FamilyRevolution,
		"fbxgw-r1/mini":         FamilyMini4K,
		"Freebox Revolution v6": FamilyRevolution,
		"Freebox Delta":         FamilyDelta,
		"Freebox One":           FamilyOne,
		"Freebox Ultra":         FamilyUltra,
		"Mystery Box 3000":      FamilyUnknown,
	}
	for id, want := range cases {
		if got := classifyModel(id); got != want {
			t.Fatalf("classify(%q) = %s, want %s", id, got, want)
		}
	}
}

func TestPopProfile(t *testing.T) {
	f := newFakeAppliance(t)
	f.mu.Lock()
	f.modelName = "Freebox Pop"
	f.boxModel = "fbxgw8-r1/full"
	f.mu.Unlock()

	caps := testDetector(t, f.URL()).DetectModel(context.Background())
	if caps.Family != FamilyPop {
		t.Fatalf("family: %s", caps.Family)
	}
	if caps.SupportsVM() || caps.MaxVMs != 0 {
		t.Fatalf("pop must not support VMs: %+v", caps)
	}
	if caps.Supports6GHz() {
		t.Fatal("pop must not report 6GHz")
	}
	if caps.DisplayName != "Freebox Pop" {
		t.Fatalf("display name: %s", caps.DisplayName)
	}
}

func TestUnknownDefaultsFullyPopulated(t *testing.T) {
	caps := FamilyDefaults(FamilyUnknown)
	if caps.DisplayName == "" || len(caps.WiFiBands) == 0 || len(caps.TempFields) == 0 {
		t.Fatalf("unknown profile has undefined fields: %+v", caps)
	}
	if caps.EthernetMbps == 0 || caps.LineMbps == 0 {
		t.Fatalf("unknown profile has zero ceilings: %+v", caps)
	}
	if caps.VMSupport != VMNone {
		t.Fatalf("unknown profile VM level: %s", caps.VMSupport)
	}
}

func TestEveryFamilyInTableIsPopulated(t *testing.T) {
	for fam, caps := range familyTable {
		if caps.Family != fam {
			t.Fatalf("family field mismatch for %s", fam)
		}
		if caps.DisplayName == "" || len(caps.WiFiBands) == 0 || len(caps.TempFields) == 0 {
			t.Fatalf("%s profile incomplete: %+v", fam, caps)
		}
		if caps.SupportsVM() && caps.MaxVMs == 0 {
			t.Fatalf("%s supports VMs but caps MaxVMs at 0", fam)
		}
	}
}

func TestConcurrentDetectionDeduplicated(t *testing.T) {
	f := newFakeAppliance(t)
	d := testDetector(t, f.URL())

	const n = 16
	var wg sync.WaitGroup
	results := make([]Capabilities, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.DetectModel(context.Background())
		}(i)
	}
	wg.Wait()

	f.mu.Lock()
	calls := f.discoveryCalls
	f.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one discovery call, got %d", calls)
	}
	for _, caps := range results {
		if caps.Family != FamilyUltra {
			t.Fatalf("caller got %s", caps.Family)
		}
	}
}

func TestCacheFreshnessWindow(t *testing.T) {
	f := newFakeAppliance(t)
	d := testDetector(t, f.URL())

	a := d.DetectModel(context.Background())
	b := d.DetectModel(context.Background())
	if a.Family != b.Family || a.DisplayName != b.DisplayName {
		t.Fatalf("cached result differs: %+v vs %+v", a, b)
	}
	f.mu.Lock()
	calls := f.discoveryCalls
	f.mu.Unlock()
	if calls != 1 {
		t.Fatalf("second call within window hit the network: %d calls", calls)
	}

	// Expire the cache and observe re-detection.
	d.mu.Lock()
	d.fetchedAt = time.Now().Add(-detectTTL - time.Second)
	d.mu.Unlock()
	_ = d.DetectModel(context.Background())
	f.mu.Lock()
	calls = f.discoveryCalls
	f.mu.Unlock()
	if calls != 2 {
		t.Fatalf("expired cache did not re-detect: %d calls", calls)
	}
}

func TestRefreshAlwaysRequeriesAndReplacesOnFailure(t *testing.T) {
	f := newFakeAppliance(t)
	d := testDetector(t, f.URL())

	if caps := d.DetectModel(context.Background()); caps.Family != FamilyUltra {
		t.Fatalf("setup: %s", caps.Family)
	}

	// Kill the appliance; Refresh must still re-query and replace the cached
	// ultra profile with the unknown fallback.
	f.ts.Close()
	var fellBack bool
	d.OnFallback = func(reason string, err error) { fellBack = true }

	caps := d.Refresh(context.Background())
	if caps.Family != FamilyUnknown {
		t.Fatalf("refresh after failure: %s", caps.Family)
	}
	if !fellBack {
		t.Fatal("fallback hook not observed")
	}
	if cached := d.DetectModel(context.Background()); cached.Family != FamilyUnknown {
		t.Fatalf("failed refresh did not replace cache: %s", cached.Family)
	}
}

func TestDetectionFailureNeverFatal(t *testing.T) {
	d := testDetector(t, "http://127.0.0.1:1")
	caps := d.DetectModel(context.Background())
	if caps.Family != FamilyUnknown {
		t.Fatalf("expected unknown profile, got %s", caps.Family)
	}
}

func TestModelOverrideBypassesNetwork(t *testing.T) {
	f := newFakeAppliance(t)
	d := testDetector(t, f.URL())
	d.Override = "delta"

	caps := d.DetectModel(context.Background())
	if caps.Family != FamilyDelta {
		t.Fatalf("override family: %s", caps.Family)
	}
	if caps.DisplayName != "Simulated Freebox Delta" {
		t.Fatalf("override display name: %s", caps.DisplayName)
	}
	f.mu.Lock()
	calls := f.discoveryCalls
	f.mu.Unlock()
	if calls != 0 {
		t.Fatalf("override still hit the network: %d calls", calls)
	}
}

func TestClearCacheDropsResult(t *testing.T) {
	f := newFakeAppliance(t)
	d := testDetector(t, f.URL())
	_ = d.DetectModel(context.Background())
	d.ClearCache()
	_ = d.DetectModel(context.Background())
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.discoveryCalls != 2 {
		t.Fatalf("ClearCache did not force re-detection: %d calls", f.discoveryCalls)
	}
}

func TestClearCacheDiscardsInFlightDetection(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(arrived)
			<-release
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"box_model_name":"Freebox v9 (r1)","box_model":"fbxgw9-r1/full"}`))
	}))
	t.Cleanup(ts.Close)
	d := testDetector(t, ts.URL)

	got := make(chan Capabilities, 1)
	go func() { got <- d.DetectModel(context.Background()) }()
	<-arrived
	d.ClearCache()
	close(release)

	// The caller that started the flight still gets its answer.
	if caps := <-got; caps.Family != FamilyUltra {
		t.Fatalf("in-flight caller got %s", caps.Family)
	}
	d.mu.Lock()
	stale := d.cached
	d.mu.Unlock()
	if stale != nil {
		t.Fatal("flight started before ClearCache repopulated the cache")
	}

	// The next caller re-detects instead of reusing the discarded flight.
	if caps := d.DetectModel(context.Background()); caps.Family != FamilyUltra {
		t.Fatalf("re-detection got %s", caps.Family)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Fatalf("expected a fresh discovery call after the clear, got %d total", n)
	}
}
