package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limit wraps next so that every call first waits for a token from limiter.
// A wait that cannot be satisfied (cancelled context, deadline too close)
// is returned as the call's error.  The limiter is shared by all callers.
func Limit(next NoteExtractor, limiter *rate.Limiter) NoteExtractor {
	if limiter == nil {
		return next
	}
	return &rateLimited{next: next, limiter: limiter}
}

type rateLimited struct {
	next    NoteExtractor
	limiter *rate.Limiter
}

func (r *rateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

func (r *rateLimited) ExtractFromConversation(ctx context.Context, transcript string) (ConversationExtract, error) {
	if err := r.wait(ctx); err != nil {
		return ConversationExtract{}, err
	}
	return r.next.ExtractFromConversation(ctx, transcript)
}

func (r *rateLimited) ExtractFromImageText(ctx context.Context, text string) (ImageExtract, error) {
	if err := r.wait(ctx); err != nil {
		return ImageExtract{}, err
	}
	return r.next.ExtractFromImageText(ctx, text)
}

func (r *rateLimited) CompareNotes(ctx context.Context, previous, current string) (NoteComparison, error) {
	if err := r.wait(ctx); err != nil {
		return NoteComparison{}, err
	}
	return r.next.CompareNotes(ctx, previous, current)
}
