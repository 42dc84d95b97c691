// Package jsonrpc defines the JSON-RPC 2.0 wire types used by the correlator.
//
// The package provides:
//   - Request and Notification, the two outbound message shapes
//   - Response and Error, the inbound shapes routed back to pending calls
//   - Build, which turns an emit argument list into an outbound message
//   - DecodeFrame, which decodes one inbound frame into a single response or a batch
//   - IDGenerator implementations (a counter and ULIDs) and id keys for lookup
//
// Wire format for a request:
//
//	{"jsonrpc":"2.0","method":"sum","params":[1,2],"id":1}
//
// Wire format for a response:
//
//	{"jsonrpc":"2.0","id":1,"result":3}
package jsonrpc
