package domain

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type Span struct {
	Name       string `json:"name"`
	startTs    time.Time
	subProfile *Profile

	SubSpans []*Span `json:"subSpans,omitempty"`
	Elapsed  *int64  `json:"elapsed"`
}

type profileKey struct{}

// GetProfile returns the profile attached to ctx. Callers without one get a
// throwaway profile so spans can always be recorded.
func GetProfile(ctx context.Context) (profile *Profile, endProfile func()) {
	profile, ok := ctx.Value(profileKey{}).(*Profile)
	if !ok || profile == nil {
		return NewProfile()
	}
	return profile, profile.End
}

func ContextWithProfile(ctx context.Context, profile *Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, profile)
}

// Profile is a list of timed spans for one request or simulation
type Profile struct {
	mu      sync.Mutex
	Spans   []*Span `json:"spans"`
	startTs time.Time
	TotalMs *int64 `json:"totalMs"`
}

func (p *Profile) End() {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := time.Since(p.startTs).Milliseconds()
	if p.TotalMs == nil {
		p.TotalMs = &t
	}
}

func (s *Span) End() {
	if s.Elapsed == nil {
		t := time.Since(s.startTs).Milliseconds()
		s.Elapsed = &t
	}
	if s.subProfile != nil {
		s.SubSpans = s.subProfile.snapshot()
	}
}

func NewProfile() (newProfile *Profile, endNewProfile func()) {
	newProfile = &Profile{
		Spans:   []*Span{},
		startTs: time.Now(),
	}

	return newProfile, newProfile.End
}

func NewSpan(name string) (*Span, func()) {
	newSpan := &Span{
		Name:    name,
		startTs: time.Now(),
	}
	return newSpan, newSpan.End
}

// AddSpan may be called from several simulations at once
func (p *Profile) AddSpan(s *Span) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Spans = append(p.Spans, s)
}

// StartNewSpan ends the last span and begins a new one
func (p *Profile) StartNewSpan(name string) (newSpan *Span, endSpan func()) {
	newSpan, endSpan = NewSpan(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Spans) > 0 {
		p.Spans[len(p.Spans)-1].End()
	}
	p.Spans = append(p.Spans, newSpan)
	return newSpan, endSpan
}

func (s *Span) NewSubProfile() (*Profile, func()) {
	if s.subProfile != nil {
		panic("attempting to override existing subprofile")
	}
	newProfile, end := NewProfile()
	s.subProfile = newProfile
	return newProfile, end
}

func (p *Profile) snapshot() []*Span {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Span, len(p.Spans))
	copy(out, p.Spans)
	return out
}

func (p *Profile) ToJsonBytes() ([]byte, error) {
	bytes, err := json.Marshal(p.snapshot())
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

func NewCtxWithSubProfile(ctx context.Context, parentSpan *Span) context.Context {
	newProfile, _ := parentSpan.NewSubProfile()
	return ContextWithProfile(ctx, newProfile)
}
