package adapter

import (
	"context"

	"crosspost/internal/content"
)

// Scripted is a deterministic in-memory Adapter for tests. Unset function
// fields fall back to trivial success.
type Scripted struct {
	ID          string
	Verifiable  bool
	AuthFn      func(ctx context.Context) (Session, error)
	PublishFn   func(ctx context.Context, s Session, item content.Item) (Ref, error)
	VerifyFn    func(ctx context.Context, ref Ref) (bool, error)
	PublishedTo []string // target ids appended on each successful publish
}

func (s *Scripted) TargetID() string { return s.ID }

func (s *Scripted) Authenticate(ctx context.Context) (Session, error) {
	if s.AuthFn != nil {
		return s.AuthFn(ctx)
	}
	return Session{Token: "scripted"}, nil
}

func (s *Scripted) Publish(ctx context.Context, sess Session, item content.Item) (Ref, error) {
	if s.PublishFn != nil {
		ref, err := s.PublishFn(ctx, sess, item)
		if err == nil {
			s.PublishedTo = append(s.PublishedTo, s.ID)
		}
		return ref, err
	}
	s.PublishedTo = append(s.PublishedTo, s.ID)
	return Ref{ID: s.ID + "-post", URL: "https://example.test/" + s.ID}, nil
}

func (s *Scripted) Verify(ctx context.Context, ref Ref) (bool, error) {
	if s.VerifyFn != nil {
		return s.VerifyFn(ctx, ref)
	}
	return true, nil
}

func (s *Scripted) CanVerify() bool { return s.Verifiable }
