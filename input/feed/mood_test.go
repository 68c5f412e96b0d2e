package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TSherpa10/moodzy/codec"
)

func TestMoodLabel(t *testing.T) {
	tests := []struct {
		code int32
		want string
	}{
		{0, "morbidlyjoyous"},
		{1, "robotic"},
		{2, "absolutelyfantastic"},
		{3, "human"},
		{4, "chipper"},
		{5, "overthemoon"},
		{6, "shocked"},
		{7, "lazy"},
		{8, "sleepy"},
		{9, "grateful"},
		{-1, "grateful"},
		{42, "grateful"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, MoodLabel(tt.code))
		})
	}
}

func TestMoodLabel_KnownCodesAreDistinct(t *testing.T) {
	seen := make(map[string]int32)
	for code := int32(0); code < int32(MoodCodes()); code++ {
		label := MoodLabel(code)
		prev, dup := seen[label]
		require.False(t, dup, "codes %d and %d share label %q", prev, code, label)
		assert.NotEqual(t, DefaultMood, label)
		seen[label] = code
	}
	assert.Len(t, seen, 9)
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(codec.SimUser{ID: "u1", Name: "  Bob ", Mood: 3, IsReal: false}, 1700000000000)

	assert.Equal(t, EventType, ev.Type)
	assert.Equal(t, Payload{
		ID:          "u1",
		Name:        "Bob",
		Mood:        "human",
		IsReal:      false,
		TimeCreated: 1700000000000,
		TimeUpdated: 1700000000000,
	}, ev.Payload)
}

func TestEvent_JSONFieldNames(t *testing.T) {
	ev := NewEvent(codec.SimUser{ID: "u1", Name: "Bob", Mood: 9}, 5)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"type":"simuser","payload":{"id":"u1","name":"Bob","mood":"grateful","isReal":false,"timeCreated":5,"timeUpdated":5}}`,
		string(raw))
}
