package contextmw

import (
	"context"

	"github.com/claudex-proxy/claudex/internal/dialect"
)

// Middleware applies the three optional ContextMiddleware passes in order
// (§4.9): RAG injection, cross-profile sharing, compression.
type Middleware struct {
	RAG          *RAG
	CrossProfile *CrossProfile
	Compression  *Compression
}

// Apply runs every configured pass against body in place, for profile
// currentProfile (excluded from cross-profile sharing so a profile never
// reads its own prior output back as "shared" context).
func (m *Middleware) Apply(ctx context.Context, currentProfile string, body *dialect.Request) error {
	if m == nil {
		return nil
	}
	if m.RAG != nil {
		m.RAG.Apply(ctx, body)
	}
	if m.CrossProfile != nil {
		m.CrossProfile.Apply(currentProfile, body)
	}
	if m.Compression != nil {
		if err := m.Compression.Apply(ctx, body); err != nil {
			return err
		}
	}
	return nil
}
