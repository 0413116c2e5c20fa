package store

import (
	"context"

	"utmcore/internal/apierr"
	"utmcore/internal/auth"
	"utmcore/models"
)

// mintToken generates a fresh opaque session token for droneID, replacing
// any prior token (registration rotates the token rather than
// accumulating one per call).
func (s *Store) mintToken(ctx context.Context, droneID string) (string, error) {
	tok, err := auth.NewSessionToken()
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, "generate session token", err)
	}
	rec := &models.SessionToken{Token: tok, DroneID: droneID, IssuedAt: s.clock.Now()}

	s.tokensMu.Lock()
	if old, ok := s.tokenByDrone[droneID]; ok {
		delete(s.tokensByID, old)
	}
	s.tokensByID[tok] = rec
	s.tokenByDrone[droneID] = tok
	s.tokensMu.Unlock()

	if err := s.retryWrite(ctx, func(ctx context.Context) error {
		if s.persist == nil {
			return nil
		}
		return s.persist.PutToken(ctx, rec)
	}); err != nil {
		s.tokensMu.Lock()
		delete(s.tokensByID, tok)
		delete(s.tokenByDrone, droneID)
		s.tokensMu.Unlock()
		return "", err
	}
	return tok, nil
}

// DroneIDForToken resolves a presented session token to its bound drone_id.
// Exported for the HTTP layer's bearer-token auth middleware.
func (s *Store) DroneIDForToken(token string) (string, error) {
	return s.droneIDForToken(token)
}

// droneIDForToken resolves a presented session token to its bound drone_id.
func (s *Store) droneIDForToken(token string) (string, error) {
	s.tokensMu.RLock()
	defer s.tokensMu.RUnlock()
	rec, ok := s.tokensByID[token]
	if !ok {
		return "", apierr.New(apierr.Unauthorized, string(models.RejectTokenMismatch))
	}
	return rec.DroneID, nil
}

// LoadTokens restores the in-memory token index from persisted rows at
// startup.
func (s *Store) LoadTokens(tokens []*models.SessionToken) {
	s.tokensMu.Lock()
	defer s.tokensMu.Unlock()
	for _, t := range tokens {
		s.tokensByID[t.Token] = t
		s.tokenByDrone[t.DroneID] = t.Token
	}
}
