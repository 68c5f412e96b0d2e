package codec

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of users.v1.UserObject.
const (
	userFieldID          protowire.Number = 1
	userFieldName        protowire.Number = 2
	userFieldMood        protowire.Number = 3
	userFieldIsReal      protowire.Number = 4
	userFieldTimeCreated protowire.Number = 5
	userFieldTimeUpdated protowire.Number = 6
)

// UserRecord is a registry user. Timestamps are Unix milliseconds.
type UserRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Mood        string `json:"mood"`
	IsReal      bool   `json:"isReal"`
	TimeCreated int64  `json:"timeCreated"`
	TimeUpdated int64  `json:"timeUpdated"`
}

// EncodeUser returns the wire form of r.
func EncodeUser(r UserRecord) []byte {
	var b []byte
	b = appendString(b, userFieldID, r.ID)
	b = appendString(b, userFieldName, r.Name)
	b = appendString(b, userFieldMood, r.Mood)
	b = appendBool(b, userFieldIsReal, r.IsReal)
	b = appendVarint(b, userFieldTimeCreated, uint64(r.TimeCreated))
	b = appendVarint(b, userFieldTimeUpdated, uint64(r.TimeUpdated))
	return b
}

// DecodeUser parses the wire form of a UserRecord.
func DecodeUser(b []byte) (UserRecord, error) {
	var r UserRecord
	err := walk("UserObject", b, map[protowire.Number]fieldFunc{
		userFieldID:          stringField(&r.ID),
		userFieldName:        stringField(&r.Name),
		userFieldMood:        stringField(&r.Mood),
		userFieldIsReal:      boolField(&r.IsReal),
		userFieldTimeCreated: int64Field(&r.TimeCreated),
		userFieldTimeUpdated: int64Field(&r.TimeUpdated),
	})
	if err != nil {
		return UserRecord{}, err
	}
	return r, nil
}
