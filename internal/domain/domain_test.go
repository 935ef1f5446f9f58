package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from    ConversationStatus
		action  Action
		want    ConversationStatus
		wantErr bool
	}{
		{StatusActive, ActionTransfer, StatusTransferred, false},
		{StatusActive, ActionClose, StatusClosed, false},
		{StatusActive, ActionTouch, StatusActive, false},
		{StatusActive, ActionAppend, StatusActive, false},
		{StatusTransferred, ActionTransfer, StatusTransferred, false},
		{StatusTransferred, ActionClose, StatusClosed, false},
		{StatusTransferred, ActionTouch, StatusTransferred, false},
		{StatusTransferred, ActionAppend, StatusTransferred, false},
		{StatusClosed, ActionClose, StatusClosed, false},
		{StatusClosed, ActionTransfer, "", true},
		{StatusClosed, ActionTouch, StatusClosed, false},
		{StatusClosed, ActionAppend, "", true},
		{ConversationStatus("archived"), ActionClose, "", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.from, tt.action), func(t *testing.T) {
			got, err := Transition(tt.from, tt.action)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidState)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_AcceptsAndParse(t *testing.T) {
	assert.True(t, StatusActive.Accepts())
	assert.True(t, StatusTransferred.Accepts())
	assert.False(t, StatusClosed.Accepts())

	s, err := ParseStatus("transferred")
	require.NoError(t, err)
	assert.Equal(t, StatusTransferred, s)

	_, err = ParseStatus("pending")
	assert.Error(t, err)
}

func TestError_IsAndKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("get", "abc"))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))

	pf := PartialFailure("create", "abc", StageTranscript, errors.New("mongo down"))
	assert.Contains(t, pf.Error(), "at transcript")
	assert.Contains(t, pf.Error(), "[abc]")
	assert.ErrorIs(t, pf, ErrPartialFailure)
}

func TestAnnotate(t *testing.T) {
	bare := &Error{Kind: KindInvalidInput, Err: errors.New("bad")}

	annotated := Annotate(bare, "append", "u-1")
	var e *Error
	require.True(t, errors.As(annotated, &e))
	assert.Equal(t, "append", e.Op)
	assert.Equal(t, "u-1", e.UUID)
	assert.Empty(t, bare.UUID, "original must not be modified")

	stamped := NotFound("get", "u-2")
	assert.Same(t, stamped, Annotate(stamped, "append", "u-1"))

	plain := errors.New("plain")
	assert.Equal(t, plain, Annotate(plain, "append", "u-1"))
}

func TestRolesFor(t *testing.T) {
	assert.True(t, RolesFor(UserTypeCustomer).Has(RoleCustomer))
	assert.False(t, RolesFor(UserTypeCustomer).Has(RoleService))
	assert.True(t, RolesFor(UserTypeService).Has(RoleService))
	assert.True(t, RolesFor(UserTypeAdmin).Has(RoleAdmin|RoleService))
	assert.Equal(t, RoleFlags(0), RolesFor(UserType(9)))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(CreateConversationRequest{UserID: 1, InitialMessage: "hi"}))

	err := Validate(CreateConversationRequest{UserID: 0, InitialMessage: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "UserID")
	assert.Contains(t, err.Error(), "InitialMessage")

	err = Validate(AppendMessageRequest{Speaker: "pilot", Text: "hi"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = Validate(AppendMessageRequest{Speaker: SpeakerUser, Text: strings.Repeat("x", 8001)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.ErrorIs(t, Validate(TransferRequest{}), ErrInvalidInput)
}

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, ValidateUUID("6f1c2a9e-3b7d-4c55-9a0e-2d4f8b1c7e11"))
	assert.ErrorIs(t, ValidateUUID(""), ErrInvalidInput)
	assert.ErrorIs(t, ValidateUUID("not-a-uuid"), ErrInvalidInput)
}

func TestNewTranscript(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("WIB", 7*3600))
	tr := NewTranscript(42, "Welcome aboard", now)

	assert.NotEmpty(t, tr.UUID)
	assert.Equal(t, int64(42), tr.UserID)
	require.Len(t, tr.Messages, 1)
	assert.Equal(t, SpeakerAssistant, tr.Messages[0].Speaker)
	assert.Equal(t, time.UTC, tr.Metadata.SessionStart.Location())
	assert.True(t, tr.Metadata.SessionStart.Equal(now))
	assert.Equal(t, tr.Metadata.SessionStart, tr.Metadata.SessionEnd)

	last, ok := tr.LastMessage()
	require.True(t, ok)
	assert.Equal(t, "Welcome aboard", last.Text)
}

func TestTranscript_Tail(t *testing.T) {
	tr := &Transcript{}
	_, ok := tr.LastMessage()
	assert.False(t, ok)
	assert.Empty(t, tr.Tail(3))

	for _, text := range []string{"a", "b", "c", "d"} {
		tr.Messages = append(tr.Messages, Message{Speaker: SpeakerUser, Text: text})
	}

	tail := tr.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, "c", tail[0].Text)
	assert.Equal(t, "d", tail[1].Text)

	assert.Len(t, tr.Tail(0), 4)
	assert.Len(t, tr.Tail(10), 4)

	tail[0].Text = "changed"
	assert.Equal(t, "c", tr.Messages[2].Text)
}

func TestRestamp(t *testing.T) {
	stored := NotFound("touch", "u-1")

	restamped := Restamp(stored, "sync", "u-1")
	var e *Error
	require.True(t, errors.As(restamped, &e))
	assert.Equal(t, "sync", e.Op)
	assert.Equal(t, KindNotFound, e.Kind)
	assert.Equal(t, "touch", stored.Op, "original must not be modified")

	plain := errors.New("plain")
	assert.Equal(t, plain, Restamp(plain, "sync", "u-1"))
}
