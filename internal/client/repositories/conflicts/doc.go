// Package conflicts records pulled remote rows that arrived while the local
// copy still had unpushed changes. Both versions are kept for later review.
package conflicts
