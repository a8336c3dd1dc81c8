// Package session manages a client-side authentication session backed by a
// short-lived bearer token.
//
// The Manager owns the session state: it logs users in and out against a
// remote authentication service, mirrors the token and user profile into a
// durable Store so sessions survive restarts, and keeps the authenticated
// flag honest by re-checking token freshness on every read and on a
// background schedule. Tokens are decoded but never verified locally; the
// server stays the source of truth for validity.
//
// Outbound calls go through Client, which injects the bearer token and
// normalizes HTTP failures into structured errors. Lifecycle changes are
// published on a Bus so passive observers (typically a UI) can react to
// login, logout and expiry without polling.
package session
