// Package classify implements the tiered language cascade that decides
// whether a short text is in the protected language, the suppressed language,
// or neither.
//
// Tiers run in fixed order and short-circuit: cached result, character
// heuristic over exclusive letter sets and Cyrillic share, then the external
// identification oracle. The protected language always wins when both could
// apply; uncertainty and oracle failures resolve to neutral so the system
// errs toward showing items rather than hiding them.
package classify
