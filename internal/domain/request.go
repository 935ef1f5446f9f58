package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CreateConversationRequest starts a conversation for a user
type CreateConversationRequest struct {
	UserID         int64  `json:"user_id" validate:"required,gt=0"`
	InitialMessage string `json:"initial_message" validate:"required,max=8000"`
}

// AppendMessageRequest adds a message to a transcript
type AppendMessageRequest struct {
	Speaker Speaker `json:"speaker" validate:"required,oneof=user assistant service system"`
	Text    string  `json:"text" validate:"required,max=8000"`
}

// TransferRequest hands a conversation to a human agent
type TransferRequest struct {
	ServiceUserID int64 `json:"service_user_id" validate:"required,gt=0"`
}

// Validate checks a request struct and returns an InvalidInput error
// naming the failing fields.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Kind: KindInvalidInput, Err: err}
	}
	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", e.Field(), e.Tag()))
	}
	return &Error{Kind: KindInvalidInput, Err: errors.New(strings.Join(fields, "; "))}
}

// ValidateUUID rejects identifiers that are not canonical uuid strings
func ValidateUUID(id string) error {
	if err := validate.Var(id, "required,uuid"); err != nil {
		return &Error{Kind: KindInvalidInput, UUID: id, Err: errors.New("malformed conversation uuid")}
	}
	return nil
}
