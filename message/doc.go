// Package message holds per-call state handed to the guest: the message
// context (caller, canister, method name, argument payload) and the reply
// accumulator the guest appends its response to.
package message
