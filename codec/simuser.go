package codec

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of users.v1.SimUserObject.
const (
	simFieldID     protowire.Number = 1
	simFieldName   protowire.Number = 2
	simFieldMood   protowire.Number = 3
	simFieldIsReal protowire.Number = 4
)

// SimUser is a user emitted by an upstream simulation feed. Mood is a numeric
// code, normally 0-9.
type SimUser struct {
	ID     string
	Name   string
	Mood   int32
	IsReal bool
}

// EncodeSimUser returns the wire form of s.
func EncodeSimUser(s SimUser) []byte {
	var b []byte
	b = appendString(b, simFieldID, s.ID)
	b = appendString(b, simFieldName, s.Name)
	// int32 is sign-extended to 64 bits on the wire.
	b = appendVarint(b, simFieldMood, uint64(int64(s.Mood)))
	b = appendBool(b, simFieldIsReal, s.IsReal)
	return b
}

// DecodeSimUser parses the wire form of a SimUser.
func DecodeSimUser(b []byte) (SimUser, error) {
	var s SimUser
	err := walk("SimUserObject", b, map[protowire.Number]fieldFunc{
		simFieldID:     stringField(&s.ID),
		simFieldName:   stringField(&s.Name),
		simFieldMood:   int32Field(&s.Mood),
		simFieldIsReal: boolField(&s.IsReal),
	})
	if err != nil {
		return SimUser{}, err
	}
	return s, nil
}
