// Package codec encodes and decodes the user record schemas in the protobuf
// binary wire format.
//
// Two messages share one id space:
//
//	users.v1.UserObject     1 id  2 name  3 mood (string)  4 is_real  5 time_created  6 time_updated
//	users.v1.SimUserObject  1 id  2 name  3 mood (int32)   4 is_real
//
// Encoding follows proto3: zero values are omitted and fields are written in
// field-number order, so output is byte-identical to generated encoders.
// Decoding rejects known fields carrying the wrong wire type, truncated
// input and invalid UTF-8 with errors.ErrInvalidData. Unknown fields are
// skipped and missing fields keep their zero value.
package codec
