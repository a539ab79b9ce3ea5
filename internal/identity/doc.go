// Package identity defines the typed principal model shared by the whole
// application.
//
// Core concepts:
//
//   - Principal: the resolved representation of a signed-in account, a tagged
//     union over two disjoint variants. Team principals are internal staff
//     with a role hierarchy; Client principals are external contacts scoped
//     to an owning company. Exactly one variant exists per account id; the
//     variant is determined by which profile table holds a row for that id,
//     never by caller-supplied data.
//
//   - Context accessors: WithPrincipal has set-once semantics so a request
//     can never carry two conflicting principals. Readers use GetPrincipal.
//
//   - Legacy mapping: MapLegacyRole converts the retired single-enum role
//     model onto the dual taxonomy for the startup data migration.
//
// Usage rules:
//
//  1. Switch on Principal.Kind exhaustively at every consumption site.
//  2. Never construct a Client principal outside the invitation flow.
//  3. Treat an absent principal as signed-out, not as an error.
package identity
