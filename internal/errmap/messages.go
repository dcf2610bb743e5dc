package errmap

import (
	"net/http"

	"github.com/aelexs/authsession/pkg/identityapi"
)

// Display texts.
const (
	MsgTimeout        = "Request timed out. Please try again."
	MsgUnreachable    = "Unable to connect to the server. Please check your internet connection and try again."
	MsgNetworkPrefix  = "Network error: "
	MsgGenericFailure = "Request failed"
	MsgStatusFallback = "Request failed. Please try again later"
	MsgUnexpected     = "An unexpected error occurred"

	MsgLoginInvalid  = "Invalid email or password"
	MsgLoginFallback = "Login failed. Please try again later"

	MsgRegisterInvalid  = "Registration failed. Please check your information and try again."
	MsgRegisterFallback = "Registration failed. Please try again later"
	MsgRegisterBadInput = "Invalid email or password format"
	MsgRegisterConflict = "An account with this email already exists"
	MsgRegisterNetwork  = "Network error. Please check your connection"
)

// DefaultClassifier surfaces per-field errors for the identity service's
// known fields and otherwise uses the generic texts.
var DefaultClassifier = Classifier{
	Fields: identityapi.RegistrationFields,
}

// LoginClassifier renders failures of the login form.
var LoginClassifier = Classifier{
	GenericMessage:  MsgLoginInvalid,
	FallbackMessage: MsgLoginFallback,
}

// RegisterClassifier renders failures of the registration form, surfacing
// per-field validation errors.
var RegisterClassifier = Classifier{
	Fields:         identityapi.RegistrationFields,
	GenericMessage: MsgRegisterInvalid,
	StatusMessages: map[int]string{
		http.StatusBadRequest: MsgRegisterBadInput,
		http.StatusConflict:   MsgRegisterConflict,
	},
	FallbackMessage: MsgRegisterFallback,
	NetworkMessage:  MsgRegisterNetwork,
}
