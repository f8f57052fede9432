// Package policy decides what a publishing task does when the peripheral
// event loop refuses a post: abort the process, log and continue, or ignore.
package policy
