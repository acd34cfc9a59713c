package processor

import (
	"context"

	"civicpulse/internal/utils"
)

// CachingProcessor remembers completed sessions. A completed session never
// changes state, so repeated confirmations skip the processor round trip.
// Sessions in any other state are always fetched fresh.
type CachingProcessor struct {
	Processor
	sessions *utils.Cache[Session]
}

func NewCachingProcessor(next Processor, sessions *utils.Cache[Session]) *CachingProcessor {
	return &CachingProcessor{Processor: next, sessions: sessions}
}

func (p *CachingProcessor) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	if sess, ok := p.sessions.Get(id); ok {
		return &sess, nil
	}
	sess, err := p.Processor.RetrieveSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Completed() {
		p.sessions.Set(id, *sess)
	}
	return sess, nil
}
