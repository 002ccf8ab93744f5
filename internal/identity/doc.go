// Package identity resolves connection tokens to verified identities.
//
// The routing core never trusts role or assignment fields arriving in a
// join_session payload; the gateway resolves a token at handshake time and
// the router reconciles the payload against the verified identity,
// rejecting mismatches.
package identity
