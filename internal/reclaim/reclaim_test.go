// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reclaim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tinychat/internal/session"
)

type fakeTarget struct {
	mu       sync.Mutex
	loaded   bool
	idle     time.Duration
	releases []session.Reason
	touches  int
}

func (f *fakeTarget) IdleFor(time.Time) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idle
}

func (f *fakeTarget) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *fakeTarget) Release(reason session.Reason) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return false
	}
	f.loaded = false
	f.releases = append(f.releases, reason)
	return true
}

func (f *fakeTarget) Touch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++
	f.idle = 0
}

func (f *fakeTarget) Releases() []session.Reason {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Reason(nil), f.releases...)
}

func pressure(ratio float64, ok bool) PressureFunc {
	return func(context.Context) (float64, bool) { return ratio, ok }
}

func TestNew_Defaults(t *testing.T) {
	r := New(&fakeTarget{}, Options{})
	assert.Equal(t, DefaultIdleCheckInterval, r.opts.IdleCheckInterval)
	assert.Equal(t, DefaultIdleThreshold, r.opts.IdleThreshold)
	assert.Equal(t, DefaultMemoryCheckInterval, r.opts.MemoryCheckInterval)
	assert.Equal(t, DefaultMemoryHighWater, r.opts.MemoryHighWater)
	assert.NotNil(t, r.opts.Pressure)
}

func TestCheckIdle(t *testing.T) {
	tests := []struct {
		name    string
		loaded  bool
		idle    time.Duration
		release bool
	}{
		{"not loaded", false, time.Hour, false},
		{"recent activity", true, 5 * time.Minute, false},
		{"exactly at threshold", true, 10 * time.Minute, false},
		{"past threshold", true, 11 * time.Minute, true},
		{"generating reports zero idle", true, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := &fakeTarget{loaded: tc.loaded, idle: tc.idle}
			r := New(target, Options{IdleThreshold: 10 * time.Minute, Pressure: pressure(0, false)})

			assert.Equal(t, tc.release, r.CheckIdle(time.Now()))
			if tc.release {
				assert.Equal(t, []session.Reason{session.ReasonIdle}, target.Releases())
			} else {
				assert.Empty(t, target.Releases())
			}
		})
	}
}

func TestCheckMemory(t *testing.T) {
	tests := []struct {
		name      string
		loaded    bool
		ratio     float64
		ok        bool
		highWater float64
		release   bool
	}{
		{"below high water", true, 0.5, true, 0.9, false},
		{"at high water", true, 0.9, true, 0.9, true},
		{"above high water", true, 0.97, true, 0.9, true},
		{"no reading", true, 0.99, false, 0.9, false},
		{"not loaded", false, 0.99, true, 0.9, false},
		{"disabled", true, 0.99, true, 1.5, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := &fakeTarget{loaded: tc.loaded}
			r := New(target, Options{MemoryHighWater: tc.highWater, Pressure: pressure(tc.ratio, tc.ok)})

			assert.Equal(t, tc.release, r.CheckMemory(context.Background()))
			if tc.release {
				assert.Equal(t, []session.Reason{session.ReasonMemoryPressure}, target.Releases())
			}
		})
	}
}

func TestCheckMemory_IgnoresRecentInteraction(t *testing.T) {
	target := &fakeTarget{loaded: true}
	r := New(target, Options{Pressure: pressure(0.95, true)})

	r.Touch()
	require.True(t, r.CheckMemory(context.Background()))
	assert.Equal(t, 1, target.touches)
}

func TestRun_ReleasesOnTick(t *testing.T) {
	target := &fakeTarget{loaded: true, idle: time.Hour}
	r := New(target, Options{
		IdleCheckInterval:   5 * time.Millisecond,
		IdleThreshold:       time.Minute,
		MemoryCheckInterval: time.Hour,
		Pressure:            pressure(0, false),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(target.Releases()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_MemoryTick(t *testing.T) {
	target := &fakeTarget{loaded: true}
	r := New(target, Options{
		IdleCheckInterval:   time.Hour,
		MemoryCheckInterval: 5 * time.Millisecond,
		Pressure:            pressure(0.99, true),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	assert.Eventually(t, func() bool {
		rel := target.Releases()
		return len(rel) == 1 && rel[0] == session.ReasonMemoryPressure
	}, 2*time.Second, 5*time.Millisecond)
}
