package codec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/TSherpa10/moodzy/errors"
)

func TestUserRecord_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   UserRecord
	}{
		{
			name: "all fields",
			in: UserRecord{
				ID:          "3f2c8a1e-0000-4000-8000-000000000001",
				Name:        "Ada",
				Mood:        "curious",
				IsReal:      true,
				TimeCreated: 1700000000000,
				TimeUpdated: 1700000000500,
			},
		},
		{
			name: "simulated user",
			in:   UserRecord{ID: "x", Name: "Bot", Mood: "robotic", TimeCreated: 1, TimeUpdated: 2},
		},
		{
			name: "unicode",
			in:   UserRecord{ID: "é", Name: "Zoë ☀", Mood: "überfröhlich", IsReal: true, TimeCreated: 5, TimeUpdated: 5},
		},
		{
			name: "zero value",
			in:   UserRecord{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecodeUser(EncodeUser(tt.in))
			require.NoError(t, err)
			if diff := cmp.Diff(tt.in, out); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSimUser_RoundTrip(t *testing.T) {
	for _, mood := range []int32{0, 1, 8, 9, 42, -1} {
		in := SimUser{ID: "sim-1", Name: "  Padded  ", Mood: mood, IsReal: false}
		out, err := DecodeSimUser(EncodeSimUser(in))
		require.NoError(t, err)
		assert.Equal(t, in, out, "mood %d", mood)
	}
}

func TestEncodeUser_WireLayout(t *testing.T) {
	got := EncodeUser(UserRecord{ID: "a", Mood: "ok", TimeUpdated: 1})

	// zero fields omitted, remaining fields in number order
	want := []byte{
		0x0a, 0x01, 'a', // 1: id
		0x1a, 0x02, 'o', 'k', // 3: mood
		0x30, 0x01, // 6: time_updated
	}
	assert.Equal(t, want, got)
	assert.Empty(t, EncodeUser(UserRecord{}))
}

func TestEncodeSimUser_NegativeMood(t *testing.T) {
	b := EncodeSimUser(SimUser{Mood: -1})

	num, typ, n := protowire.ConsumeTag(b)
	require.Greater(t, n, 0)
	assert.Equal(t, simFieldMood, num)
	assert.Equal(t, protowire.VarintType, typ)
	// sign-extended int32 takes the full ten bytes
	assert.Len(t, b[n:], 10)
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 7, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 12345)
	b = append(b, EncodeSimUser(SimUser{ID: "s", Name: "n", Mood: 3, IsReal: true})...)
	b = protowire.AppendTag(b, 50, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)

	s, err := DecodeSimUser(b)
	require.NoError(t, err)
	assert.Equal(t, SimUser{ID: "s", Name: "n", Mood: 3, IsReal: true}, s)
}

func TestDecode_MissingFieldsDefault(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, userFieldName, protowire.BytesType)
	b = protowire.AppendString(b, "only-name")

	r, err := DecodeUser(b)
	require.NoError(t, err)
	assert.Equal(t, UserRecord{Name: "only-name"}, r)
}

func TestDecode_Rejects(t *testing.T) {
	wrongType := protowire.AppendTag(nil, userFieldID, protowire.VarintType)
	wrongType = protowire.AppendVarint(wrongType, 1)

	wrongTimeType := protowire.AppendTag(nil, userFieldTimeCreated, protowire.BytesType)
	wrongTimeType = protowire.AppendString(wrongTimeType, "soon")

	badUTF8 := protowire.AppendTag(nil, userFieldName, protowire.BytesType)
	badUTF8 = protowire.AppendBytes(badUTF8, []byte{0xff, 0xfe})

	full := EncodeUser(UserRecord{ID: "abc", Name: "Ada", Mood: "x", TimeCreated: 10})

	tests := []struct {
		name string
		data []byte
	}{
		{"wrong wire type for string", wrongType},
		{"wrong wire type for int64", wrongTimeType},
		{"invalid utf8", badUTF8},
		{"truncated string", full[:len(full)-4]},
		{"truncated tag", []byte{0x80}},
		{"truncated unknown field", []byte{0xaa, 0x06, 0x05, 'a'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeUser(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidData)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestDecodeSimUser_WrongMoodType(t *testing.T) {
	b := protowire.AppendTag(nil, simFieldMood, protowire.BytesType)
	b = protowire.AppendString(b, "chipper")

	_, err := DecodeSimUser(b)
	assert.ErrorIs(t, err, errors.ErrInvalidData)
}

func TestUserRecord_DecodesSimUserBytes(t *testing.T) {
	// Both messages share field numbers 1, 2 and 4; mood differs in type.
	b := EncodeSimUser(SimUser{ID: "s", Name: "n", IsReal: true})
	r, err := DecodeUser(b)
	require.NoError(t, err)
	assert.Equal(t, UserRecord{ID: "s", Name: "n", IsReal: true}, r)
}
