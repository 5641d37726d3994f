package breakout

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestValidate_RejectsTooFewRooms(t *testing.T) {
	err := validate(nil, nil)
	assert.ErrorIs(t, err, ErrTooFewRooms)
}

func TestValidate_RejectsTooManyRooms(t *testing.T) {
	configs := make([]RoomSpec, 21)
	for i := range configs {
		configs[i] = RoomSpec{Name: "room"}
	}
	err := validate(configs, nil)
	assert.ErrorIs(t, err, ErrTooManyRooms)
}

func TestValidate_RejectsEmptyOrOverlongName(t *testing.T) {
	assert.ErrorIs(t, validate([]RoomSpec{{Name: ""}}, nil), ErrNameLength)

	longName := make([]byte, 101)
	for i := range longName {
		longName[i] = 'a'
	}
	assert.ErrorIs(t, validate([]RoomSpec{{Name: string(longName)}}, nil), ErrNameLength)
}

func TestValidate_RejectsDuplicateParticipantWithinOneRoom(t *testing.T) {
	pid := uuid.New()
	configs := []RoomSpec{{Name: "room-1", ParticipantIDs: []uuid.UUID{pid, pid}}}
	err := validate(configs, nil)
	assert.ErrorIs(t, err, ErrDuplicateInRoom)
}

func TestValidate_AllowsSameParticipantAcrossDifferentRooms(t *testing.T) {
	pid := uuid.New()
	configs := []RoomSpec{
		{Name: "room-1", ParticipantIDs: []uuid.UUID{pid}},
		{Name: "room-2", ParticipantIDs: []uuid.UUID{pid}},
	}
	assert.NoError(t, validate(configs, nil))
}

func TestValidate_RejectsOutOfRangeDuration(t *testing.T) {
	configs := []RoomSpec{{Name: "room-1"}}
	assert.ErrorIs(t, validate(configs, intPtr(0)), ErrDuration)
	assert.ErrorIs(t, validate(configs, intPtr(121)), ErrDuration)
	assert.NoError(t, validate(configs, intPtr(120)))
	assert.NoError(t, validate(configs, intPtr(1)))
}
