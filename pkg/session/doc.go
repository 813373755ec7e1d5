// Package session ties lazily loaded records to the client that produced them
// without holding a reference to the client itself.
//
// A Registry hands out Handles for live Fetchers (normally a *client.Client).
// Records keep only the Handle. When the client closes, its Handle stops
// resolving and every record bound to it observes ErrDetached the next time it
// needs the network. Values already present keep working offline.
//
//	rec := session.NewRecord("award", "CONT_AWD_1", raw, c.Handle())
//	v, err := rec.Get(ctx, "description")   // may trigger one detail fetch
//	if errors.Is(err, session.ErrDetached) {
//		rec.Reattach(other.Handle(), true)
//	}
package session
