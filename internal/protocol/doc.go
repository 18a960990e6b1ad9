// Package protocol owns the envelope wire contract shared by the client, the
// coordinator and workers.
//
// Ownership boundary:
// - envelope shape and kinds
// - single-line JSON encode/decode
// - typed payloads keyed by kind
//
// Wire shape, one envelope per line:
//
//	{"type":"CREATE_ARRAY","from":"client","to":"master","timestamp":1700000000000,"data":{...}}\n
//
// Envelopes carry no correlation id. A reply can only be matched to its
// request by the connection it arrived on.
package protocol
